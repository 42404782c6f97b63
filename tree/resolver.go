// Package tree maintains the containment structure of the drive over the
// flat node store: ancestry resolution by reverse search and the
// multi-step, order-sensitive mutations (create-and-link, move, delete)
// that keep the single-parent forest intact without store transactions.
package tree

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arborlabs/arbor/client"
	"github.com/arborlabs/arbor/models"
	"github.com/arborlabs/arbor/nodes"
)

// Resolver reconstructs ancestor chains. The store holds no parent
// pointer, so each step is a reverse search: find the directory whose
// contents lists the current id. O(depth) round trips, read-only.
type Resolver struct {
	repo   *nodes.Repository
	logger *slog.Logger
}

func NewResolver(repo *nodes.Repository, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: logger.WithGroup("resolver"),
	}
}

// Parent returns the directory containing nodeID, or nil when nodeID is a
// root (no directory references it; root-ness is never stored).
func (r *Resolver) Parent(ctx context.Context, nodeID string) (*models.Node, error) {
	page, err := r.repo.Search(ctx, client.SearchQuery{
		Match: map[string]any{
			"type":     string(models.NodeTypeDirectory),
			"contents": nodeID,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(page.Nodes) == 0 {
		return nil, nil
	}
	if len(page.Nodes) > 1 {
		// Two directories claim the same child. A half-finished move can
		// leave this window open; surface it instead of picking one.
		r.logger.Error("Node has multiple parents", "node", nodeID, "parents", len(page.Nodes))
		return nil, fmt.Errorf("%w: node %s has %d parents", nodes.ErrInconsistentTree, nodeID, len(page.Nodes))
	}
	parent := page.Nodes[0]
	return &parent, nil
}

// ResolvePath returns the chain of nodes from the root down to nodeID,
// inclusive. The walk is capped and cycle-checked: corrupted containment
// data becomes ErrInconsistentTree, never an unbounded loop.
func (r *Resolver) ResolvePath(ctx context.Context, nodeID string) ([]models.Node, error) {
	node, err := r.repo.GetOne(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	path := []models.Node{*node}
	visited := map[string]struct{}{node.ID: {}}

	currentID := node.ID
	for depth := 0; depth < models.MaxPathDepth; depth++ {
		parent, err := r.Parent(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return path, nil
		}
		if _, seen := visited[parent.ID]; seen {
			r.logger.Error("Cycle detected while resolving path", "node", nodeID, "repeated", parent.ID)
			return nil, fmt.Errorf("%w: cycle through %s", nodes.ErrInconsistentTree, parent.ID)
		}
		visited[parent.ID] = struct{}{}
		path = append([]models.Node{*parent}, path...)
		currentID = parent.ID
	}
	return nil, fmt.Errorf("%w: ancestry deeper than %d", nodes.ErrInconsistentTree, models.MaxPathDepth)
}
