package tree

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arborlabs/arbor/models"
	"github.com/arborlabs/arbor/nodes"
)

// Mutator performs the multi-step containment mutations. Each operation is
// 2-3 separate store writes with no transaction around them; ordering and
// by-value idempotent list edits are what keep partial failures
// recoverable by retrying the same logical call.
type Mutator struct {
	repo   *nodes.Repository
	logger *slog.Logger
}

func NewMutator(repo *nodes.Repository, logger *slog.Logger) *Mutator {
	return &Mutator{
		repo:   repo,
		logger: logger.WithGroup("mutator"),
	}
}

// fetchDirectory loads a fresh copy of a parent for a read-modify-write of
// its contents. Cached reads are off-limits here.
func (m *Mutator) fetchDirectory(ctx context.Context, id string) (*models.Node, error) {
	node, err := m.repo.GetFresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if !node.IsDirectory() {
		return nil, fmt.Errorf("%w: %s is a %s, not a directory", nodes.ErrInvalidType, id, node.Type)
	}
	return node, nil
}

func (m *Mutator) writeContents(ctx context.Context, id string, contents []string) error {
	return m.repo.Update(ctx, id, &models.NodePatch{Contents: &contents})
}

// link appends childID to the directory's contents unless already present.
// Safe to repeat: appending a distinct id is commutative and the presence
// guard makes the retry a no-op.
func (m *Mutator) link(ctx context.Context, parentID, childID string) error {
	parent, err := m.fetchDirectory(ctx, parentID)
	if err != nil {
		return err
	}
	contents, changed := appendIfAbsent(parent.Contents, childID)
	if !changed {
		return nil
	}
	return m.writeContents(ctx, parentID, contents)
}

// unlink removes childID from the directory's contents if present.
func (m *Mutator) unlink(ctx context.Context, parentID, childID string) error {
	parent, err := m.fetchDirectory(ctx, parentID)
	if err != nil {
		return err
	}
	contents, changed := removeValue(parent.Contents, childID)
	if !changed {
		return nil
	}
	return m.writeContents(ctx, parentID, contents)
}

// CreateAndLink creates a node and, when parentID is given, links it under
// that directory. The two writes are not atomic: a failed link leaves the
// created node as an orphan, reported via PartialMutationError and never
// auto-deleted; the caller may retry the link by calling Link directly.
func (m *Mutator) CreateAndLink(ctx context.Context, draft *models.NodeDraft, parentID string) (*models.Node, error) {
	node, err := m.repo.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	if parentID == "" {
		return node, nil
	}

	if err := m.link(ctx, parentID, node.ID); err != nil {
		m.logger.Error("Created node could not be linked, orphan left in store",
			"node", node.ID, "parent", parentID, "error", err)
		return node, &PartialMutationError{
			Op:        OpCreate,
			NodeID:    node.ID,
			Completed: []Step{StepCreate},
			Failed:    StepLink,
			Err:       err,
		}
	}
	return node, nil
}

// Link retries the second half of a create-and-link (or the second half of
// a move). Idempotent on distinct ids.
func (m *Mutator) Link(ctx context.Context, parentID, childID string) error {
	return m.link(ctx, parentID, childID)
}

// Move relocates nodeID from one parent to another. Either parent may be
// "" meaning the root level (no containing directory). The unlink half
// runs first; a failure in either half surfaces as PartialMutationError so
// the caller can repeat the same logical move. Between the halves the node
// transiently has zero parents; the reverse window (two parents) opens
// only if a retried move re-runs the link half before the unlink half, and
// both windows close under retry.
func (m *Mutator) Move(ctx context.Context, nodeID, fromParentID, toParentID string) error {
	if fromParentID == toParentID {
		// No-op guard. Skipping it would duplicate the child id in the
		// parent's contents on a same-folder "move".
		return nil
	}

	var completed []Step

	if fromParentID != "" {
		if err := m.unlink(ctx, fromParentID, nodeID); err != nil {
			return &PartialMutationError{
				Op:        OpMove,
				NodeID:    nodeID,
				Completed: completed,
				Failed:    StepUnlink,
				Err:       err,
			}
		}
		completed = append(completed, StepUnlink)
	}

	if toParentID != "" {
		if err := m.link(ctx, toParentID, nodeID); err != nil {
			m.logger.Error("Move unlinked node but link failed, node is parentless until retried",
				"node", nodeID, "from", fromParentID, "to", toParentID, "error", err)
			return &PartialMutationError{
				Op:        OpMove,
				NodeID:    nodeID,
				Completed: completed,
				Failed:    StepLink,
				Err:       err,
			}
		}
	}
	return nil
}

// Delete unlinks nodeID from its parent (when given) and then deletes the
// record. Unlink strictly precedes delete: deleting first would leave the
// parent's contents referencing a dead id. Deleting a symlink removes only
// the link node, never its target. Children of a deleted folder are not
// walked; they leave the tree together with the folder's own contents
// relationship.
func (m *Mutator) Delete(ctx context.Context, nodeID, parentID string) error {
	var completed []Step

	if parentID != "" {
		if err := m.unlink(ctx, parentID, nodeID); err != nil {
			return &PartialMutationError{
				Op:        OpDelete,
				NodeID:    nodeID,
				Completed: completed,
				Failed:    StepUnlink,
				Err:       err,
			}
		}
		completed = append(completed, StepUnlink)
	}

	if err := m.repo.Delete(ctx, nodeID); err != nil {
		m.logger.Error("Node unlinked but record deletion failed, orphan left in store",
			"node", nodeID, "error", err)
		return &PartialMutationError{
			Op:        OpDelete,
			NodeID:    nodeID,
			Completed: completed,
			Failed:    StepDelete,
			Err:       err,
		}
	}
	return nil
}

func appendIfAbsent(list []string, value string) ([]string, bool) {
	for _, v := range list {
		if v == value {
			return list, false
		}
	}
	return append(append([]string(nil), list...), value), true
}

func removeValue(list []string, value string) ([]string, bool) {
	result := make([]string, 0, len(list))
	changed := false
	for _, v := range list {
		if v == value {
			changed = true
			continue
		}
		result = append(result, v)
	}
	return result, changed
}
