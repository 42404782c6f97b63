package lock

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlabs/arbor/models"
	"github.com/arborlabs/arbor/nodes"
	"github.com/arborlabs/arbor/nodes/nodestest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture builds a manager over a fresh store with a single file and a
// settable clock.
func fixture(t *testing.T) (*nodestest.Store, *Manager, string, *time.Time) {
	t.Helper()
	store := nodestest.New()
	fileID := store.Seed(models.Node{Type: models.NodeTypeFile, Name: "notes.md"})

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := &now

	repo := nodes.New(store, nil, testLogger())
	mgr := NewManager(repo, testLogger()).WithClock(func() time.Time { return *clock })
	return store, mgr, fileID, clock
}

func TestTryAcquire_Unlocked(t *testing.T) {
	store, mgr, fileID, _ := fixture(t)

	require.NoError(t, mgr.TryAcquire(context.Background(), fileID, "alice", "alice-laptop"))

	node, _ := store.Node(fileID)
	require.NotNil(t, node.Lock)
	assert.Equal(t, "alice", node.Lock.User)
	assert.Equal(t, "alice-laptop", node.Lock.Client)
}

func TestTryAcquire_HeldByOtherUser(t *testing.T) {
	_, mgr, fileID, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-laptop"))

	err := mgr.TryAcquire(ctx, fileID, "bob", "bob-laptop")
	assert.ErrorIs(t, err, nodes.ErrLocked)
}

func TestTryAcquire_ReentrantForSameUser(t *testing.T) {
	store, mgr, fileID, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-laptop"))
	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-phone"))

	node, _ := store.Node(fileID)
	assert.Equal(t, "alice-phone", node.Lock.Client, "reacquire rebinds the lock to the new session")
}

func TestTryAcquire_ExpiredLockIsClaimable(t *testing.T) {
	store, mgr, fileID, clock := fixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-laptop"))

	// Five minutes in, still exclusive.
	*clock = clock.Add(5 * time.Minute)
	assert.ErrorIs(t, mgr.TryAcquire(ctx, fileID, "bob", "bob-laptop"), nodes.ErrLocked)

	// Past the timeout the stale claim no longer counts.
	*clock = clock.Add(26 * time.Minute)
	require.NoError(t, mgr.TryAcquire(ctx, fileID, "bob", "bob-laptop"))

	node, _ := store.Node(fileID)
	assert.Equal(t, "bob", node.Lock.User)
}

func TestTryAcquire_NonFile(t *testing.T) {
	store, mgr, _, _ := fixture(t)
	dirID := store.Seed(models.Node{Type: models.NodeTypeDirectory, Name: "d"})

	err := mgr.TryAcquire(context.Background(), dirID, "alice", "alice-laptop")
	assert.ErrorIs(t, err, nodes.ErrInvalidType)
}

func TestValidate_IsPerClient(t *testing.T) {
	_, mgr, fileID, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-laptop"))

	require.NoError(t, mgr.Validate(ctx, fileID, "alice", "alice-laptop"))
	// Same user, different session: acquisition would be allowed, writing
	// through is not.
	assert.ErrorIs(t, mgr.Validate(ctx, fileID, "alice", "alice-phone"), nodes.ErrLocked)
	assert.ErrorIs(t, mgr.Validate(ctx, fileID, "bob", "bob-laptop"), nodes.ErrLocked)
}

func TestValidate_PassesWhenUnlockedOrExpired(t *testing.T) {
	_, mgr, fileID, clock := fixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.Validate(ctx, fileID, "bob", "bob-laptop"))

	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-laptop"))
	*clock = clock.Add(models.LockTimeout + time.Second)
	require.NoError(t, mgr.Validate(ctx, fileID, "bob", "bob-laptop"))
}

func TestRelease_OwnerOnly(t *testing.T) {
	store, mgr, fileID, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, mgr.TryAcquire(ctx, fileID, "alice", "alice-laptop"))

	// Wrong user, wrong session: both are silent no-ops.
	require.NoError(t, mgr.Release(ctx, fileID, "bob", "bob-laptop"))
	require.NoError(t, mgr.Release(ctx, fileID, "alice", "alice-phone"))
	node, _ := store.Node(fileID)
	assert.NotNil(t, node.Lock)

	require.NoError(t, mgr.Release(ctx, fileID, "alice", "alice-laptop"))
	node, _ = store.Node(fileID)
	assert.Nil(t, node.Lock)

	// Releasing again is not an error.
	require.NoError(t, mgr.Release(ctx, fileID, "alice", "alice-laptop"))
}

func TestState(t *testing.T) {
	_, mgr, _, clock := fixture(t)

	node := &models.Node{Type: models.NodeTypeFile}
	assert.Equal(t, models.LockStatusNone, mgr.State(node).Status)

	node.Lock = &models.Lock{User: "alice", Client: "c", CreatedAt: clock.UnixMilli()}
	state := mgr.State(node)
	assert.Equal(t, models.LockStatusActive, state.Status)
	assert.Equal(t, clock.Add(models.LockTimeout), state.ExpiresAt)

	*clock = clock.Add(models.LockTimeout)
	assert.Equal(t, models.LockStatusExpired, mgr.State(node).Status)
}

func TestDeriveClientID(t *testing.T) {
	testCases := []struct {
		name    string
		session string
		want    string
	}{
		{name: "short session kept", session: "alice-laptop", want: "alice-laptop"},
		{name: "cap-length session kept", session: strings.Repeat("s", models.MaxClientIDLen), want: strings.Repeat("s", models.MaxClientIDLen)},
		{name: "long session truncated", session: strings.Repeat("s", 40), want: strings.Repeat("s", 20)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveClientID(tc.session))
		})
	}
}

func TestDeriveClientID_Synthetic(t *testing.T) {
	id := DeriveClientID("")
	assert.True(t, strings.HasPrefix(id, "web-"))
	assert.Len(t, id, models.MaxClientIDLen)
	assert.NotEqual(t, id, DeriveClientID(""), "synthetic ids must be unique")
}
