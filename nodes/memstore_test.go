package nodes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arborlabs/arbor/client"
	"github.com/arborlabs/arbor/models"
)

// memStore is a minimal in-package StoreAPI for repository tests. The
// richer fake with error injection lives in nodestest for the layers above.
type memStore struct {
	mu      sync.RWMutex
	nodes   map[string]models.Node
	nextID  int
	pageCap int
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[string]models.Node), pageCap: 100}
}

func (s *memStore) put(node models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
}

func (s *memStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
}

func (s *memStore) GetNodes(ctx context.Context, ids ...string) ([]models.Node, error) {
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

func (s *memStore) CreateNode(ctx context.Context, draft *models.NodeDraft) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	node := models.Node{
		ID:       fmt.Sprintf("m%d", s.nextID),
		Type:     draft.Type,
		Name:     draft.Name,
		Contents: draft.Contents,
		Text:     draft.Text,
		Size:     int64(len(draft.Text)),
		Tags:     draft.Tags,
		Lock:     draft.Lock,
	}
	s.nodes[node.ID] = node
	return &node, nil
}

func (s *memStore) UpdateNode(ctx context.Context, id string, patch *models.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", client.ErrNotFound, id)
	}
	if patch.Name != nil {
		node.Name = *patch.Name
	}
	if patch.Text != nil {
		node.Text = *patch.Text
		node.Size = int64(len(*patch.Text))
	}
	if patch.Tags != nil {
		node.Tags = *patch.Tags
	}
	if patch.Contents != nil {
		node.Contents = *patch.Contents
	}
	if patch.Lock != nil {
		node.Lock = patch.Lock
	} else if patch.ClearLock {
		node.Lock = nil
	}
	s.nodes[id] = node
	return nil
}

func (s *memStore) DeleteNodes(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.nodes, id)
	}
	return nil
}

func (s *memStore) Search(ctx context.Context, query client.SearchQuery) (*client.SearchPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var page []models.Node
	for _, id := range ids {
		if query.After != "" && id <= query.After {
			continue
		}
		page = append(page, s.nodes[id])
		if len(page) == s.pageCap {
			break
		}
	}
	return &client.SearchPage{Nodes: page}, nil
}
