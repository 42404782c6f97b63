package nodes

import (
	"errors"
	"fmt"

	"github.com/arborlabs/arbor/client"
)

// Shared error taxonomy for the drive layer. tree, lock, and drive all
// report against these so callers match one set of sentinels regardless of
// which component failed.
var (
	ErrNotFound         = errors.New("node not found")
	ErrInvalidType      = errors.New("operation applied to wrong node type")
	ErrInvalidDraft     = errors.New("node draft is malformed")
	ErrLocked           = errors.New("file is locked by another user")
	ErrTextTooLarge     = errors.New("file text exceeds the 10 KiB limit")
	ErrInconsistentTree = errors.New("containment structure is inconsistent")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// translateError maps raw store client errors into the repository taxonomy.
// Rate-limit errors pass through untouched so the retryAfter hint survives
// to the caller.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *client.ErrRateLimited
	if errors.As(err, &rateLimitErr) {
		return err
	}

	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, client.ErrStoreUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
