package session

import (
	"context"
	"testing"
	"time"

	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTenant(t *testing.T, store repository.DocumentStore, tenantID, category string, completed bool) string {
	t.Helper()
	ctx := context.Background()
	catID, err := store.Create(ctx, repository.CategoriesPath(tenantID), repository.Fields{"name": category})
	require.NoError(t, err)
	_, err = store.Create(ctx, repository.ProblemsPath(tenantID), repository.Fields{
		"title": category + " warmup", "difficulty": "Easy", "category": catID, "completed": completed,
		"tags": []string{"warmup"},
	})
	require.NoError(t, err)
	return catID
}

func waitFor(t *testing.T, updates <-chan Snapshot, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-updates:
			require.True(t, ok, "updates channel closed")
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestSession_PublishesTreeAndStats(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	seedTenant(t, store, "alice", "Arrays", true)
	s := New(livesync.NewController(store, nil), nil)
	defer s.Close()

	updates, cancel := s.Updates()
	defer cancel()
	require.NoError(t, s.SetTenant(context.Background(), "alice"))

	snap := waitFor(t, updates, func(s Snapshot) bool { return len(s.Tree) == 1 })
	assert.Equal(t, "Arrays", snap.Tree[0].Name)
	assert.Equal(t, 1, snap.Stats.TotalProblems)
	assert.Equal(t, 1, snap.Stats.EasyCompleted)

	assert.Equal(t, "alice", s.TenantID())
	assert.Equal(t, snap.Stats, s.Stats())
	assert.Len(t, s.Search("WARM"), 1)
	assert.Empty(t, s.Search("graph"))
}

func TestSession_SwitchingTenantDropsPreviousView(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	aliceCat := seedTenant(t, store, "alice", "Arrays", false)
	seedTenant(t, store, "bob", "Graphs", false)
	s := New(livesync.NewController(store, nil), nil)
	defer s.Close()

	updates, cancel := s.Updates()
	defer cancel()

	require.NoError(t, s.SetTenant(context.Background(), "alice"))
	waitFor(t, updates, func(s Snapshot) bool { return len(s.Tree) == 1 && s.Tree[0].Name == "Arrays" })

	require.NoError(t, s.SetTenant(context.Background(), "bob"))
	waitFor(t, updates, func(s Snapshot) bool { return len(s.Tree) == 1 && s.Tree[0].Name == "Graphs" })

	// writes for the old tenant no longer reach this session
	_, err := store.Create(context.Background(), repository.ProblemsPath("alice"), repository.Fields{
		"title": "late", "difficulty": "Hard", "category": aliceCat,
	})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "Graphs", s.Tree()[0].Name)
}

func TestSession_SignOutClearsState(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	seedTenant(t, store, "alice", "Arrays", true)
	s := New(livesync.NewController(store, nil), nil)
	defer s.Close()

	updates, cancel := s.Updates()
	defer cancel()
	require.NoError(t, s.SetTenant(context.Background(), "alice"))
	waitFor(t, updates, func(s Snapshot) bool { return len(s.Tree) == 1 })

	require.NoError(t, s.SetTenant(context.Background(), ""))
	_, published := s.Current()
	assert.False(t, published)
	assert.Empty(t, s.Tree())
	assert.Equal(t, "", s.TenantID())
}

func TestSession_LateListenerGetsCurrentSnapshot(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	seedTenant(t, store, "alice", "Arrays", false)
	s := New(livesync.NewController(store, nil), nil)
	defer s.Close()

	require.NoError(t, s.SetTenant(context.Background(), "alice"))
	require.Eventually(t, func() bool {
		_, ok := s.Current()
		return ok
	}, time.Second, 5*time.Millisecond)

	updates, cancel := s.Updates()
	defer cancel()
	select {
	case snap := <-updates:
		assert.Len(t, snap.Tree, 1)
	default:
		t.Fatal("expected a primed snapshot")
	}
}

func TestSession_CloseEndsUpdates(t *testing.T) {
	s := New(livesync.NewController(repository.NewMemoryDocumentStore(), nil), nil)
	updates, cancel := s.Updates()

	s.Close()
	_, ok := <-updates
	assert.False(t, ok)
	assert.NotPanics(t, cancel)
	assert.NotPanics(t, s.Close)
	assert.NoError(t, s.SetTenant(context.Background(), "alice"))
}

func TestSession_SignOutDropsUnreadSnapshot(t *testing.T) {
	store := repository.NewMemoryDocumentStore()
	seedTenant(t, store, "alice", "Arrays", false)
	s := New(livesync.NewController(store, nil), nil)
	defer s.Close()

	updates, cancel := s.Updates()
	defer cancel()
	require.NoError(t, s.SetTenant(context.Background(), "alice"))
	require.Eventually(t, func() bool {
		_, ok := s.Current()
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SetTenant(context.Background(), ""))
	select {
	case snap := <-updates:
		t.Fatalf("stale snapshot after sign-out: %+v", snap)
	default:
	}

	s.Close()
	_, ok := <-updates
	assert.False(t, ok)
}
