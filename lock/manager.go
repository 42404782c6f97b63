// Package lock arbitrates concurrent edits to file nodes. A lock is a
// stored (user, client, acquired-at) claim with a fixed timeout; there is
// no in-process coordination, the stored field is the only exclusivity
// primitive. Expiry is computed at read time, never written back.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arborlabs/arbor/models"
	"github.com/arborlabs/arbor/nodes"
)

type Manager struct {
	repo    *nodes.Repository
	timeout time.Duration
	clock   func() time.Time
	logger  *slog.Logger
}

// NewManager builds a lock manager with the standard 30-minute timeout.
func NewManager(repo *nodes.Repository, logger *slog.Logger) *Manager {
	return &Manager{
		repo:    repo,
		timeout: models.LockTimeout,
		clock:   time.Now,
		logger:  logger.WithGroup("lock"),
	}
}

// WithClock replaces the time source. Tests use this to cross the expiry
// boundary without sleeping.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// State computes the tagged lock state of a node right now.
func (m *Manager) State(node *models.Node) models.LockState {
	return models.LockStateAt(node.Lock, m.clock(), m.timeout)
}

// StateOf is State with the wall clock and standard timeout, for callers
// that only render lock status and have no manager at hand.
func StateOf(node *models.Node) models.LockState {
	return models.LockStateAt(node.Lock, time.Now(), models.LockTimeout)
}

func (m *Manager) fetchFile(ctx context.Context, nodeID string) (*models.Node, error) {
	node, err := m.repo.GetFresh(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if !node.IsFile() {
		return nil, fmt.Errorf("%w: %s is a %s, locks apply to files", nodes.ErrInvalidType, nodeID, node.Type)
	}
	return node, nil
}

// TryAcquire claims the edit lock on a file for (user, clientID).
// Succeeds when the file is unlocked, the existing lock has expired, or
// the existing lock belongs to the same user (re-entrant: a user opening a
// second session does not lock themselves out). Fails with ErrLocked when
// another user holds an active lock.
func (m *Manager) TryAcquire(ctx context.Context, nodeID, user, clientID string) error {
	node, err := m.fetchFile(ctx, nodeID)
	if err != nil {
		return err
	}

	state := m.State(node)
	if state.Active() && state.User != user {
		return fmt.Errorf("%w: held by %s until %s",
			nodes.ErrLocked, state.User, state.ExpiresAt.Format(time.RFC3339))
	}

	claim := &models.Lock{
		User:      user,
		Client:    clientID,
		CreatedAt: m.clock().UnixMilli(),
	}
	if err := m.repo.Update(ctx, nodeID, &models.NodePatch{Lock: claim}); err != nil {
		return err
	}
	m.logger.Debug("Lock acquired", "node", nodeID, "user", user, "client", clientID)
	return nil
}

// Validate checks that (user, clientID) may write the file right now:
// no lock, an expired lock, or an exact (user, client) match. Unlike
// acquisition, validation is per-client — the same user in a different
// session does not pass.
func (m *Manager) Validate(ctx context.Context, nodeID, user, clientID string) error {
	node, err := m.fetchFile(ctx, nodeID)
	if err != nil {
		return err
	}

	state := m.State(node)
	if !state.Active() {
		return nil
	}
	if state.User == user && state.Client == clientID {
		return nil
	}
	return fmt.Errorf("%w: held by %s", nodes.ErrLocked, state.User)
}

// Release clears the lock when (user, clientID) owns it, and silently does
// nothing otherwise: nobody can release someone else's lock, and releasing
// an already-released lock is not an error.
func (m *Manager) Release(ctx context.Context, nodeID, user, clientID string) error {
	node, err := m.fetchFile(ctx, nodeID)
	if err != nil {
		return err
	}

	if node.Lock == nil || !node.Lock.Matches(user, clientID) {
		return nil
	}
	if err := m.repo.Update(ctx, nodeID, &models.NodePatch{ClearLock: true}); err != nil {
		return err
	}
	m.logger.Debug("Lock released", "node", nodeID, "user", user, "client", clientID)
	return nil
}
