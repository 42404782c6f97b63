// Package nodes is the typed access layer for drive nodes: the single
// point of truth for node shape validation and the only path the rest of
// the module reads or writes nodes through. Reads for display may be
// served from an injected TTL cache; reads that precede a read-modify-write
// of contents or lock always bypass it, and every write invalidates the
// ids it touched.
package nodes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jellydator/ttlcache/v3"

	"github.com/arborlabs/arbor/client"
	"github.com/arborlabs/arbor/models"
)

// StoreAPI is the slice of the store client the repository consumes.
type StoreAPI interface {
	GetNodes(ctx context.Context, ids ...string) ([]models.Node, error)
	CreateNode(ctx context.Context, draft *models.NodeDraft) (*models.Node, error)
	UpdateNode(ctx context.Context, id string, patch *models.NodePatch) error
	DeleteNodes(ctx context.Context, ids ...string) error
	Search(ctx context.Context, query client.SearchQuery) (*client.SearchPage, error)
}

type Repository struct {
	store  StoreAPI
	cache  *ttlcache.Cache[string, models.Node]
	logger *slog.Logger
}

// New builds a repository over the store client. cache may be nil to
// disable read caching entirely.
func New(store StoreAPI, cache *ttlcache.Cache[string, models.Node], logger *slog.Logger) *Repository {
	return &Repository{
		store:  store,
		cache:  cache,
		logger: logger.WithGroup("nodes"),
	}
}

func (r *Repository) cacheGet(id string) (models.Node, bool) {
	if r.cache == nil {
		return models.Node{}, false
	}
	item := r.cache.Get(id)
	if item == nil {
		return models.Node{}, false
	}
	return item.Value(), true
}

func (r *Repository) cacheSet(node models.Node) {
	if r.cache == nil {
		return
	}
	r.cache.Set(node.ID, node, ttlcache.DefaultTTL)
}

// Invalidate drops ids from the cache. Called on every write path for
// every id the write touched; also available to callers that learn a node
// changed out of band.
func (r *Repository) Invalidate(ids ...string) {
	if r.cache == nil {
		return
	}
	for _, id := range ids {
		r.cache.Delete(id)
	}
}

// Get fetches nodes by id, order-preserving. Missing ids are simply absent
// from the result; callers must detect that themselves. Display paths only:
// results may be cache-stale up to the TTL.
func (r *Repository) Get(ctx context.Context, ids ...string) ([]models.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[string]models.Node, len(ids))
	var misses []string
	for _, id := range ids {
		if node, ok := r.cacheGet(id); ok {
			found[id] = node
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		fetched, err := r.store.GetNodes(ctx, misses...)
		if err != nil {
			return nil, translateError(err)
		}
		for _, node := range fetched {
			found[node.ID] = node
			r.cacheSet(node)
		}
	}

	result := make([]models.Node, 0, len(ids))
	for _, id := range ids {
		if node, ok := found[id]; ok {
			result = append(result, node)
		}
	}
	return result, nil
}

// GetOne fetches a single node, ErrNotFound when the store does not know
// the id. Subject to the same cache staleness as Get.
func (r *Repository) GetOne(ctx context.Context, id string) (*models.Node, error) {
	result, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &result[0], nil
}

// GetFresh fetches a single node straight from the store, bypassing the
// cache. Required before every read-modify-write of contents or lock: a
// stale read there would reintroduce the races the store level already
// tolerates.
func (r *Repository) GetFresh(ctx context.Context, id string) (*models.Node, error) {
	fetched, err := r.store.GetNodes(ctx, id)
	if err != nil {
		return nil, translateError(err)
	}
	if len(fetched) == 0 {
		r.Invalidate(id)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	node := fetched[0]
	r.cacheSet(node)
	return &node, nil
}

// Create validates the draft shape and creates a standalone node. The new
// node is unreachable until a directory's contents is updated to include
// its id; that linking is the tree mutator's job.
func (r *Repository) Create(ctx context.Context, draft *models.NodeDraft) (*models.Node, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	node, err := r.store.CreateNode(ctx, draft)
	if err != nil {
		return nil, translateError(err)
	}
	r.cacheSet(*node)
	r.logger.Debug("Created node", "id", node.ID, "type", node.Type, "name", node.Name)
	return node, nil
}

// Update applies a partial update and invalidates the id. The text cap is
// enforced here, before anything reaches the store.
func (r *Repository) Update(ctx context.Context, id string, patch *models.NodePatch) error {
	if patch != nil && patch.Text != nil && models.TextByteLen(*patch.Text) > models.MaxTextBytes {
		return fmt.Errorf("%w: %d bytes", ErrTextTooLarge, models.TextByteLen(*patch.Text))
	}
	if err := r.store.UpdateNode(ctx, id, patch); err != nil {
		return translateError(err)
	}
	r.Invalidate(id)
	return nil
}

// Delete removes node records and invalidates them.
func (r *Repository) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.store.DeleteNodes(ctx, ids...); err != nil {
		return translateError(err)
	}
	r.Invalidate(ids...)
	return nil
}

// Search runs one page of an attribute-match search. Never cached: search
// answers "who references whom" questions whose staleness the resolver
// cannot tolerate.
func (r *Repository) Search(ctx context.Context, query client.SearchQuery) (*client.SearchPage, error) {
	page, err := r.store.Search(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	return page, nil
}

// SearchAll walks every page of an attribute-match search.
func (r *Repository) SearchAll(ctx context.Context, match map[string]any) ([]models.Node, error) {
	var all []models.Node
	after := ""
	for {
		page, err := r.Search(ctx, client.SearchQuery{Match: match, After: after})
		if err != nil {
			return nil, err
		}
		if len(page.Nodes) == 0 {
			return all, nil
		}
		all = append(all, page.Nodes...)
		after = page.Next()
	}
}

func validateDraft(draft *models.NodeDraft) error {
	if draft == nil {
		return fmt.Errorf("%w: nil draft", ErrInvalidDraft)
	}
	if !draft.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDraft, draft.Type)
	}
	if draft.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidDraft)
	}
	switch draft.Type {
	case models.NodeTypeFile:
		if len(draft.Contents) != 0 {
			return fmt.Errorf("%w: file cannot have contents", ErrInvalidDraft)
		}
		if models.TextByteLen(draft.Text) > models.MaxTextBytes {
			return fmt.Errorf("%w: %d bytes", ErrTextTooLarge, models.TextByteLen(draft.Text))
		}
	case models.NodeTypeDirectory:
		if draft.Text != "" {
			return fmt.Errorf("%w: directory cannot have text", ErrInvalidDraft)
		}
		if draft.Lock != nil {
			return fmt.Errorf("%w: directory cannot carry a lock", ErrInvalidDraft)
		}
	case models.NodeTypeSymlink:
		if len(draft.Contents) != 1 || draft.Contents[0] == "" {
			return fmt.Errorf("%w: symlink must reference exactly one target", ErrInvalidDraft)
		}
		if draft.Text != "" {
			return fmt.Errorf("%w: symlink cannot have text", ErrInvalidDraft)
		}
		if draft.Lock != nil {
			return fmt.Errorf("%w: symlink cannot carry a lock", ErrInvalidDraft)
		}
	}
	return nil
}
