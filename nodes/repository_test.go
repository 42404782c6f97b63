package nodes

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore wraps another StoreAPI and counts GetNodes calls, to
// observe whether a read was served from cache.
type countingStore struct {
	StoreAPI
	gets int
}

func (s *countingStore) GetNodes(ctx context.Context, ids ...string) ([]models.Node, error) {
	s.gets++
	return s.StoreAPI.GetNodes(ctx, ids...)
}

func TestGet_PreservesOrderAndSkipsMissing(t *testing.T) {
	store := newMemStore()
	store.put(models.Node{ID: "a", Type: models.NodeTypeFile, Name: "one"})
	store.put(models.Node{ID: "b", Type: models.NodeTypeFile, Name: "two"})

	repo := New(store, nil, testLogger())

	result, err := repo.Get(context.Background(), "b", "ghost", "a")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "b", result[0].ID)
	assert.Equal(t, "a", result[1].ID)
}

func TestGetOne_NotFound(t *testing.T) {
	repo := New(newMemStore(), nil, testLogger())
	_, err := repo.GetOne(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ServedFromCache(t *testing.T) {
	mem := newMemStore()
	mem.put(models.Node{ID: "a", Type: models.NodeTypeFile, Name: "one"})
	counting := &countingStore{StoreAPI: mem}

	repo := New(counting, NewCache(time.Minute), testLogger())

	_, err := repo.GetOne(context.Background(), "a")
	require.NoError(t, err)
	_, err = repo.GetOne(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 1, counting.gets, "second read must hit the cache")
}

func TestGetFresh_BypassesCache(t *testing.T) {
	mem := newMemStore()
	mem.put(models.Node{ID: "a", Type: models.NodeTypeFile, Name: "stale"})
	counting := &countingStore{StoreAPI: mem}

	repo := New(counting, NewCache(time.Minute), testLogger())

	_, err := repo.GetOne(context.Background(), "a")
	require.NoError(t, err)

	// Mutate behind the cache's back.
	mem.put(models.Node{ID: "a", Type: models.NodeTypeFile, Name: "fresh"})

	node, err := repo.GetFresh(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "fresh", node.Name)
	assert.Equal(t, 2, counting.gets)

	// The fresh value replaced the cached one.
	cached, err := repo.GetOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "fresh", cached.Name)
	assert.Equal(t, 2, counting.gets)
}

func TestGetFresh_MissInvalidatesCache(t *testing.T) {
	mem := newMemStore()
	mem.put(models.Node{ID: "a", Type: models.NodeTypeFile, Name: "one"})
	counting := &countingStore{StoreAPI: mem}

	repo := New(counting, NewCache(time.Minute), testLogger())

	_, err := repo.GetOne(context.Background(), "a")
	require.NoError(t, err)

	mem.remove("a")

	_, err = repo.GetFresh(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)

	// The cached copy must be gone too.
	_, err = repo.GetOne(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	mem := newMemStore()
	mem.put(models.Node{ID: "a", Type: models.NodeTypeFile, Name: "before"})
	counting := &countingStore{StoreAPI: mem}

	repo := New(counting, NewCache(time.Minute), testLogger())

	_, err := repo.GetOne(context.Background(), "a")
	require.NoError(t, err)

	name := "after"
	require.NoError(t, repo.Update(context.Background(), "a", &models.NodePatch{Name: &name}))

	node, err := repo.GetOne(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "after", node.Name)
	assert.Equal(t, 2, counting.gets, "read after update must refetch")
}

func TestUpdate_RejectsOversizeText(t *testing.T) {
	repo := New(newMemStore(), nil, testLogger())

	big := string(make([]byte, models.MaxTextBytes+1))
	err := repo.Update(context.Background(), "a", &models.NodePatch{Text: &big})
	assert.ErrorIs(t, err, ErrTextTooLarge)
}

func TestCreate_DraftValidation(t *testing.T) {
	testCases := []struct {
		name    string
		draft   *models.NodeDraft
		wantErr error
	}{
		{
			name:    "nil draft",
			draft:   nil,
			wantErr: ErrInvalidDraft,
		},
		{
			name:    "unknown type",
			draft:   &models.NodeDraft{Type: "socket", Name: "x"},
			wantErr: ErrInvalidDraft,
		},
		{
			name:    "empty name",
			draft:   &models.NodeDraft{Type: models.NodeTypeFile},
			wantErr: ErrInvalidDraft,
		},
		{
			name:    "file with contents",
			draft:   &models.NodeDraft{Type: models.NodeTypeFile, Name: "x", Contents: []string{"a"}},
			wantErr: ErrInvalidDraft,
		},
		{
			name:    "file over text cap",
			draft:   &models.NodeDraft{Type: models.NodeTypeFile, Name: "x", Text: string(make([]byte, models.MaxTextBytes+1))},
			wantErr: ErrTextTooLarge,
		},
		{
			name:    "directory with text",
			draft:   &models.NodeDraft{Type: models.NodeTypeDirectory, Name: "x", Text: "no"},
			wantErr: ErrInvalidDraft,
		},
		{
			name:    "symlink without target",
			draft:   &models.NodeDraft{Type: models.NodeTypeSymlink, Name: "x"},
			wantErr: ErrInvalidDraft,
		},
		{
			name:    "symlink with two targets",
			draft:   &models.NodeDraft{Type: models.NodeTypeSymlink, Name: "x", Contents: []string{"a", "b"}},
			wantErr: ErrInvalidDraft,
		},
	}
	repo := New(newMemStore(), nil, testLogger())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.Create(context.Background(), tc.draft)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreate_FileAtExactCap(t *testing.T) {
	repo := New(newMemStore(), nil, testLogger())
	node, err := repo.Create(context.Background(), &models.NodeDraft{
		Type: models.NodeTypeFile,
		Name: "max.md",
		Text: string(make([]byte, models.MaxTextBytes)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(models.MaxTextBytes), node.Size)
}

func TestSearchAll_WalksEveryPage(t *testing.T) {
	mem := newMemStore()
	mem.pageCap = 2
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mem.put(models.Node{ID: id, Type: models.NodeTypeFile, Name: id})
	}

	repo := New(mem, nil, testLogger())

	all, err := repo.SearchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
