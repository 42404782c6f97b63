package drive

import (
	"context"
	"fmt"

	"github.com/arborlabs/arbor/models"
)

// Usage sums the stored size of every file node. Directories and symlinks
// contribute nothing; they carry no text.
func (s *Service) Usage(ctx context.Context) (int64, error) {
	all, err := s.repo.SearchAll(ctx, map[string]any{"type": models.NodeTypeFile})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, node := range all {
		total += node.Size
	}
	return total, nil
}

// FormatBytes renders a byte count for display: "0 Bytes", then KB/MB/GB
// with two decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	const unit = 1024
	switch {
	case n < unit:
		return fmt.Sprintf("%d Bytes", n)
	case n < unit*unit:
		return fmt.Sprintf("%.2f KB", float64(n)/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.2f MB", float64(n)/(unit*unit))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(unit*unit*unit))
	}
}
