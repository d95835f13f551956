package memory

import (
	"context"
	"testing"

	"github.com/theapemachine/conscious-go/pkg/errors"
)

func newTestRepository() (*Repository, *MockVectorStore) {
	store := NewMockVectorStore()
	return NewRepository(store, NewMockEmbedder()), store
}

func TestRepositorySave(t *testing.T) {
	ctx := context.Background()

	t.Run("saves a memory with defaults", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, err := repo.Save(ctx, SaveInput{Text: "Go uses goroutines", Importance: 5})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}

		if mem.ID == "" {
			t.Error("expected a generated id")
		}
		if mem.Source != SourceExplicit {
			t.Errorf("expected explicit source, got %q", mem.Source)
		}
		if mem.SyncState != SyncStateUnsynced {
			t.Errorf("expected unsynced state, got %q", mem.SyncState)
		}
		if len(mem.Embedding) == 0 {
			t.Error("expected an embedding")
		}
		if mem.Timestamp.IsZero() {
			t.Error("expected a timestamp")
		}
	})

	t.Run("rejects blank text", func(t *testing.T) {
		repo, _ := newTestRepository()

		_, err := repo.Save(ctx, SaveInput{Text: "   ", Importance: 5})
		if !errors.Is(err, errors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("rescales fractional importance", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, err := repo.Save(ctx, SaveInput{Text: "note", Importance: 0.7})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if mem.Importance != 7 {
			t.Errorf("expected importance 7, got %d", mem.Importance)
		}
	})

	t.Run("clamps tiny fractional importance to 1", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, err := repo.Save(ctx, SaveInput{Text: "note", Importance: 0.01})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if mem.Importance != 1 {
			t.Errorf("expected importance 1, got %d", mem.Importance)
		}
	})

	t.Run("accepts whole importance in range", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, err := repo.Save(ctx, SaveInput{Text: "note", Importance: 8})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if mem.Importance != 8 {
			t.Errorf("expected importance 8, got %d", mem.Importance)
		}
	})

	t.Run("rejects out-of-range and fractional-above-one importance", func(t *testing.T) {
		repo, _ := newTestRepository()

		for _, v := range []float64{0, 11, -3, 5.5} {
			if _, err := repo.Save(ctx, SaveInput{Text: "note", Importance: v}); !errors.Is(err, errors.ErrValidation) {
				t.Errorf("importance %v: expected validation error, got %v", v, err)
			}
		}
	})

	t.Run("dedupes tags case-insensitively keeping first casing", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, err := repo.Save(ctx, SaveInput{
			Text:       "note",
			Importance: 5,
			Tags:       []string{"Go", "go", " concurrency ", "", "GO"},
		})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}

		want := []string{"Go", "concurrency"}
		if len(mem.Tags) != len(want) {
			t.Fatalf("expected tags %v, got %v", want, mem.Tags)
		}
		for i := range want {
			if mem.Tags[i] != want[i] {
				t.Errorf("tag %d: expected %q, got %q", i, want[i], mem.Tags[i])
			}
		}
	})
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("re-embeds only when text changes", func(t *testing.T) {
		repo, store := newTestRepository()

		mem, _ := repo.Save(ctx, SaveInput{Text: "original text", Importance: 5})

		newImportance := 9.0
		updated, err := repo.Update(ctx, mem.ID, UpdateInput{Importance: &newImportance})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		stored, _ := store.Get(ctx, mem.ID)
		if !equalVectors(stored.Embedding, mem.Embedding) {
			t.Error("embedding changed without a text change")
		}
		if updated.Importance != 9 {
			t.Errorf("expected importance 9, got %d", updated.Importance)
		}

		newText := "completely different text about databases"
		updated, err = repo.Update(ctx, mem.ID, UpdateInput{Text: &newText})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if equalVectors(updated.Embedding, mem.Embedding) {
			t.Error("embedding did not change with the text")
		}
	})

	t.Run("replaces tags rather than merging", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, _ := repo.Save(ctx, SaveInput{Text: "note", Importance: 5, Tags: []string{"old", "stale"}})

		tags := []string{"fresh"}
		updated, err := repo.Update(ctx, mem.ID, UpdateInput{Tags: &tags})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if len(updated.Tags) != 1 || updated.Tags[0] != "fresh" {
			t.Errorf("expected tags [fresh], got %v", updated.Tags)
		}
	})

	t.Run("preserves the creation timestamp and resets sync state", func(t *testing.T) {
		repo, store := newTestRepository()

		mem, _ := repo.Save(ctx, SaveInput{Text: "note", Importance: 5})
		if err := repo.SetSyncState(ctx, mem.ID, SyncStateSynced, 0); err != nil {
			t.Fatalf("set sync state failed: %v", err)
		}

		text := "edited note"
		updated, err := repo.Update(ctx, mem.ID, UpdateInput{Text: &text})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if !updated.Timestamp.Equal(mem.Timestamp) {
			t.Error("timestamp changed on update")
		}

		stored, _ := store.Get(ctx, mem.ID)
		if stored.SyncState != SyncStateUnsynced {
			t.Errorf("expected unsynced after update, got %q", stored.SyncState)
		}
	})

	t.Run("returns not found for unknown ids", func(t *testing.T) {
		repo, _ := newTestRepository()

		text := "anything"
		if _, err := repo.Update(ctx, "nope", UpdateInput{Text: &text}); !errors.Is(err, errors.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("rejects blanking the text", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, _ := repo.Save(ctx, SaveInput{Text: "note", Importance: 5})

		blank := "  "
		if _, err := repo.Update(ctx, mem.ID, UpdateInput{Text: &blank}); !errors.Is(err, errors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete is idempotent", func(t *testing.T) {
		repo, _ := newTestRepository()

		mem, _ := repo.Save(ctx, SaveInput{Text: "note", Importance: 5})

		deleted, err := repo.Delete(ctx, mem.ID)
		if err != nil || !deleted {
			t.Fatalf("expected first delete to succeed, got %v/%v", deleted, err)
		}

		deleted, err = repo.Delete(ctx, mem.ID)
		if err != nil {
			t.Fatalf("second delete errored: %v", err)
		}
		if deleted {
			t.Error("second delete reported true")
		}
	})
}

func TestRepositoryList(t *testing.T) {
	ctx := context.Background()

	t.Run("walks all pages of the store", func(t *testing.T) {
		repo, _ := newTestRepository()

		for i := 0; i < 300; i++ {
			if _, err := repo.Save(ctx, SaveInput{Text: "note", Importance: 5}); err != nil {
				t.Fatalf("save %d failed: %v", i, err)
			}
		}

		all, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(all) != 300 {
			t.Errorf("expected 300 memories, got %d", len(all))
		}
	})

	t.Run("filters by sync state", func(t *testing.T) {
		repo, _ := newTestRepository()

		a, _ := repo.Save(ctx, SaveInput{Text: "a", Importance: 5})
		b, _ := repo.Save(ctx, SaveInput{Text: "b", Importance: 5})

		if err := repo.SetSyncState(ctx, a.ID, SyncStateSynced, 0); err != nil {
			t.Fatalf("set sync state failed: %v", err)
		}

		unsynced, err := repo.List(ctx, Filter{SyncState: SyncStateUnsynced})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(unsynced) != 1 || unsynced[0].ID != b.ID {
			t.Errorf("expected only %s unsynced, got %v", b.ID, unsynced)
		}
	})
}

func equalVectors(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
