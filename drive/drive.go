// Package drive is the operation surface exposed to UI and editor layers:
// listing, folder/symlink creation, move/rename, deletion, lock handling,
// and the editor save path. It composes the repository, resolver, mutator,
// and lock manager; no transport is mandated here.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arborlabs/arbor/lock"
	"github.com/arborlabs/arbor/models"
	"github.com/arborlabs/arbor/nodes"
	"github.com/arborlabs/arbor/tree"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

type Service struct {
	repo     *nodes.Repository
	resolver *tree.Resolver
	mutator  *tree.Mutator
	locks    *lock.Manager
	logger   *slog.Logger
}

func NewService(repo *nodes.Repository, resolver *tree.Resolver, mutator *tree.Mutator, locks *lock.Manager, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		mutator:  mutator,
		locks:    locks,
		logger:   logger.WithGroup("drive"),
	}
}

// New wires a full service over a repository with default collaborators.
func New(repo *nodes.Repository, logger *slog.Logger) *Service {
	return NewService(
		repo,
		tree.NewResolver(repo, logger),
		tree.NewMutator(repo, logger),
		lock.NewManager(repo, logger),
		logger,
	)
}

// Locks exposes the lock manager for callers that drive the editor
// lifecycle directly.
func (s *Service) Locks() *lock.Manager { return s.locks }

// ListRoot returns the root-level nodes in the requested order. Root-ness
// is never stored: a node is at the root exactly when no directory's
// contents references it, so the full listing is scanned for reverse
// references.
func (s *Service) ListRoot(ctx context.Context, sort SortMode) ([]models.Node, error) {
	all, err := s.repo.SearchAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]struct{})
	for _, node := range all {
		if !node.IsDirectory() {
			continue
		}
		for _, childID := range node.Contents {
			referenced[childID] = struct{}{}
		}
	}

	var roots []models.Node
	for _, node := range all {
		if _, ok := referenced[node.ID]; !ok {
			roots = append(roots, node)
		}
	}
	s.logger.Debug("Listed root", "total", len(all), "roots", len(roots))
	SortNodes(roots, sort)
	return roots, nil
}

// ListFolder returns a folder's children in the requested order.
func (s *Service) ListFolder(ctx context.Context, folderID string, sort SortMode) ([]models.Node, error) {
	folder, err := s.repo.GetOne(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !folder.IsDirectory() {
		return nil, fmt.Errorf("%w: %s is a %s, not a directory", nodes.ErrInvalidType, folderID, folder.Type)
	}
	children, err := s.repo.Get(ctx, folder.Contents...)
	if err != nil {
		return nil, err
	}
	SortNodes(children, sort)
	return children, nil
}

// Breadcrumbs returns the ancestor chain of a node, root first, the node
// itself last.
func (s *Service) Breadcrumbs(ctx context.Context, nodeID string) ([]models.Node, error) {
	return s.resolver.ResolvePath(ctx, nodeID)
}

// CreateFolder creates a directory and links it under parentID when given.
func (s *Service) CreateFolder(ctx context.Context, name, parentID string) (*models.Node, error) {
	draft := &models.NodeDraft{
		Type:     models.NodeTypeDirectory,
		Name:     name,
		Contents: []string{},
	}
	return s.mutator.CreateAndLink(ctx, draft, parentID)
}

// CreateSymlink creates a symlink to targetID and links it under parentID
// when given. The target must exist at creation time; it may of course
// disappear later, which is what broken-link handling in ResolveSymlink is
// for.
func (s *Service) CreateSymlink(ctx context.Context, name, targetID, parentID string) (*models.Node, error) {
	if _, err := s.repo.GetOne(ctx, targetID); err != nil {
		return nil, err
	}
	draft := &models.NodeDraft{
		Type:     models.NodeTypeSymlink,
		Name:     name,
		Contents: []string{targetID},
	}
	return s.mutator.CreateAndLink(ctx, draft, parentID)
}

// ResolveSymlink returns the node a symlink points at. A missing target
// surfaces ErrNotFound: the link is broken, not the operation.
func (s *Service) ResolveSymlink(ctx context.Context, link *models.Node) (*models.Node, error) {
	targetID := link.SymlinkTarget()
	if targetID == "" {
		return nil, fmt.Errorf("%w: %s is not a well-formed symlink", nodes.ErrInvalidType, link.ID)
	}
	return s.repo.GetOne(ctx, targetID)
}

// MoveRequest carries the optional pieces of a move-or-rename. Rename and
// retag apply first; the containment change runs only when HasNewParent is
// set, with NewParentID=="" meaning "move to root".
type MoveRequest struct {
	NodeID          string
	NewName         string
	NewTags         *[]string
	HasNewParent    bool
	NewParentID     string
	CurrentParentID string
}

// MoveOrRename renames/retags a node and relocates it between parents.
func (s *Service) MoveOrRename(ctx context.Context, req MoveRequest) error {
	patch := &models.NodePatch{}
	if req.NewName != "" {
		patch.Name = &req.NewName
	}
	if req.NewTags != nil {
		patch.Tags = req.NewTags
	}
	if !patch.Empty() {
		if err := s.repo.Update(ctx, req.NodeID, patch); err != nil {
			return err
		}
	}

	if !req.HasNewParent {
		return nil
	}
	return s.mutator.Move(ctx, req.NodeID, req.CurrentParentID, req.NewParentID)
}

// DeleteNode unlinks a node from its parent (when given) and deletes its
// record.
func (s *Service) DeleteNode(ctx context.Context, nodeID, parentID string) error {
	return s.mutator.Delete(ctx, nodeID, parentID)
}

// AcquireLock, ReleaseLock and ValidateLock drive the editor lock
// lifecycle.
func (s *Service) AcquireLock(ctx context.Context, nodeID, user, clientID string) error {
	return s.locks.TryAcquire(ctx, nodeID, user, clientID)
}

func (s *Service) ReleaseLock(ctx context.Context, nodeID, user, clientID string) error {
	return s.locks.Release(ctx, nodeID, user, clientID)
}

func (s *Service) ValidateLock(ctx context.Context, nodeID, user, clientID string) error {
	return s.locks.Validate(ctx, nodeID, user, clientID)
}

// SaveRequest is the editor save payload. NodeID=="" creates a new file;
// otherwise the existing file is updated in place. ParentID only applies
// to creation.
type SaveRequest struct {
	NodeID   string
	Name     string
	Text     string
	Tags     []string
	ParentID string
	User     string
	ClientID string
}

// Save writes a file's name, text, and tags. The 10 KiB text cap is
// enforced before anything reaches the store, and for existing files the
// caller's lock is validated first — a save never silently overrides
// another client's active lock. New files are created already locked by
// their author so the editor session that created them keeps exclusivity.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*models.Node, error) {
	if models.TextByteLen(req.Text) > models.MaxTextBytes {
		return nil, fmt.Errorf("%w: %d bytes", nodes.ErrTextTooLarge, models.TextByteLen(req.Text))
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	if req.NodeID != "" {
		if err := s.locks.Validate(ctx, req.NodeID, req.User, req.ClientID); err != nil {
			return nil, err
		}
		patch := &models.NodePatch{
			Name: &req.Name,
			Text: &req.Text,
			Tags: &tags,
		}
		if err := s.repo.Update(ctx, req.NodeID, patch); err != nil {
			return nil, err
		}
		return s.repo.GetFresh(ctx, req.NodeID)
	}

	draft := &models.NodeDraft{
		Type: models.NodeTypeFile,
		Name: req.Name,
		Text: req.Text,
		Tags: tags,
		Lock: &models.Lock{
			User:      req.User,
			Client:    req.ClientID,
			CreatedAt: nowMillis(),
		},
	}
	s.logger.Debug("Creating file", "name", req.Name, "parent", req.ParentID, "user", req.User)
	return s.mutator.CreateAndLink(ctx, draft, req.ParentID)
}
