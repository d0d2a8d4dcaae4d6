package state

import (
	"path/filepath"
	"testing"

	"github.com/concordlabs/concord/pkg/models"
)

func newTestStore(t *testing.T) *CheckpointStore {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	orig := populatedState(t)

	id, err := store.SaveCheckpoint("run-1", orig)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("empty checkpoint ID")
	}

	restored, err := store.LoadCheckpoint(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored == nil {
		t.Fatal("checkpoint not found")
	}
	if restored.TaskCount() != orig.TaskCount() {
		t.Errorf("expected %d tasks, got %d", orig.TaskCount(), restored.TaskCount())
	}
}

func TestStoreLoadUnknownID(t *testing.T) {
	store := newTestStore(t)

	st, err := store.LoadCheckpoint("nope")
	if err != nil {
		t.Fatalf("unknown ID must not be an error, got %v", err)
	}
	if st != nil {
		t.Error("expected nil state for unknown ID")
	}
}

func TestStoreLoadLatest(t *testing.T) {
	store := newTestStore(t)

	if st, err := store.LoadLatest(); err != nil || st != nil {
		t.Fatalf("empty store must return (nil, nil), got (%v, %v)", st, err)
	}

	first := New()
	first.AddTask(newTask("t1", "o1"), models.TaskStatusPending)
	if _, err := store.SaveCheckpoint("run-1", first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := New()
	second.AddTask(newTask("t1", "o1"), models.TaskStatusPending)
	second.AddTask(newTask("t2", "o1"), models.TaskStatusPending)
	if _, err := store.SaveCheckpoint("run-1", second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	latest, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if latest.TaskCount() != 2 {
		t.Errorf("expected the later checkpoint (2 tasks), got %d", latest.TaskCount())
	}
}

func TestStoreListCheckpoints(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := store.SaveCheckpoint("run-1", New()); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	infos, err := store.ListCheckpoints(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("expected limit 2, got %d", len(infos))
	}

	all, err := store.ListCheckpoints(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 checkpoints, got %d", len(all))
	}
	for _, info := range all {
		if info.RunID != "run-1" {
			t.Errorf("unexpected run ID %q", info.RunID)
		}
		if info.CreatedAt.IsZero() {
			t.Error("created_at not persisted")
		}
	}
}

func TestStoreAppendActions(t *testing.T) {
	store := newTestStore(t)

	s := New()
	s.LogAction("a", "first", "test")
	s.LogAction("b", "second", "test")
	if err := store.AppendActions(s.Actions()); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := store.ActionCount()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 action rows, got %d", n)
	}

	// Appending nothing is a no-op.
	if err := store.AppendActions(nil); err != nil {
		t.Fatalf("append empty: %v", err)
	}
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoints.db")

	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.SaveCheckpoint("run-1", populatedState(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	// Reopening must migrate cleanly and see existing data.
	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	st, err := reopened.LoadLatest()
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if st == nil {
		t.Fatal("data lost across reopen")
	}
}
