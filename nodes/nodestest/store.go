// Package nodestest provides a map-backed, in-memory stand-in for the
// remote node store, for tests of the layers built on the repository.
package nodestest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arborlabs/arbor/client"
	"github.com/arborlabs/arbor/models"
)

// Store implements the repository's StoreAPI against in-process maps. It
// mimics the remote store's observable contract: flat id-keyed records,
// attribute-match search with cursor pagination, absent ids silently
// missing from batch gets, 404-equivalent errors on single-id operations.
type Store struct {
	mu      sync.RWMutex
	nodes   map[string]models.Node
	nextID  int
	PageCap int // search page size; defaults to 100

	// Error injection for partial-failure scenarios. Each fires once per
	// matching call and is keyed by node id ("" for create).
	FailUpdate map[string]error
	FailDelete map[string]error
	FailCreate error
}

func New() *Store {
	return &Store{
		nodes:      make(map[string]models.Node),
		PageCap:    100,
		FailUpdate: make(map[string]error),
		FailDelete: make(map[string]error),
	}
}

// Seed inserts a node as-is, assigning an id when empty, and returns the id.
func (s *Store) Seed(node models.Node) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node.ID == "" {
		s.nextID++
		node.ID = fmt.Sprintf("n%d", s.nextID)
	}
	if node.CreatedAt == 0 {
		node.CreatedAt = time.Now().UnixMilli()
	}
	node.ModifiedAt = node.CreatedAt
	s.nodes[node.ID] = node
	return node.ID
}

// Node returns a copy of a stored node for assertions.
func (s *Store) Node(id string) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	return node, ok
}

// Len returns how many records the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) GetNodes(ctx context.Context, ids ...string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Node, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			result = append(result, node)
		}
	}
	return result, nil
}

func (s *Store) CreateNode(ctx context.Context, draft *models.NodeDraft) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		err := s.FailCreate
		s.FailCreate = nil
		return nil, err
	}
	s.nextID++
	now := time.Now().UnixMilli()
	node := models.Node{
		ID:         fmt.Sprintf("n%d", s.nextID),
		Type:       draft.Type,
		Name:       draft.Name,
		Contents:   append([]string(nil), draft.Contents...),
		Text:       draft.Text,
		Size:       int64(len(draft.Text)),
		Tags:       append([]string(nil), draft.Tags...),
		Lock:       draft.Lock,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	s.nodes[node.ID] = node
	return &node, nil
}

func (s *Store) UpdateNode(ctx context.Context, id string, patch *models.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailUpdate[id]; ok {
		delete(s.FailUpdate, id)
		return err
	}
	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", client.ErrNotFound, id)
	}
	if patch == nil || patch.Empty() {
		return nil
	}
	if patch.Name != nil {
		node.Name = *patch.Name
	}
	if patch.Text != nil {
		node.Text = *patch.Text
		node.Size = int64(len(*patch.Text))
	}
	if patch.Tags != nil {
		node.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.Contents != nil {
		node.Contents = append([]string(nil), (*patch.Contents)...)
	}
	if patch.Lock != nil {
		node.Lock = patch.Lock
	} else if patch.ClearLock {
		node.Lock = nil
	}
	node.ModifiedAt = time.Now().UnixMilli()
	s.nodes[id] = node
	return nil
}

func (s *Store) DeleteNodes(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if err, ok := s.FailDelete[id]; ok {
			delete(s.FailDelete, id)
			return err
		}
		if _, ok := s.nodes[id]; !ok {
			return fmt.Errorf("%w: %s", client.ErrNotFound, id)
		}
	}
	for _, id := range ids {
		delete(s.nodes, id)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query client.SearchQuery) (*client.SearchPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cap := s.PageCap
	if cap <= 0 {
		cap = 100
	}

	var page []models.Node
	for _, id := range ids {
		if query.After != "" && id <= query.After {
			continue
		}
		node := s.nodes[id]
		if !matches(node, query.Match) {
			continue
		}
		page = append(page, node)
		if len(page) == cap {
			break
		}
	}
	return &client.SearchPage{Nodes: page}, nil
}

func matches(node models.Node, match map[string]any) bool {
	for field, want := range match {
		switch field {
		case "type":
			if string(node.Type) != fmt.Sprint(want) {
				return false
			}
		case "name":
			if node.Name != fmt.Sprint(want) {
				return false
			}
		case "contents":
			found := false
			for _, id := range node.Contents {
				if id == fmt.Sprint(want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}
