package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/policyqa/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_InsertAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	a := &models.Chunk{ID: "a", Source: "handbook.pdf", Content: "Remote work is allowed.", Category: "policy"}
	b := &models.Chunk{ID: "b", Source: "handbook.pdf", Content: "Leave is 20 days.", Category: "leave"}
	if err := store.InsertChunk(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertChunk(ctx, b); err != nil {
		t.Fatal(err)
	}
	if a.Seq == 0 || b.Seq <= a.Seq {
		t.Errorf("sequences should increase: a=%d b=%d", a.Seq, b.Seq)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetChunk(ctx, b.Seq)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "b" || got.Content != b.Content || got.Category != "leave" {
		t.Errorf("got %+v", got)
	}

	m, err := store.GetChunksBySeq(ctx, []int64{a.Seq, b.Seq, 999})
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m[a.Seq].ID != "a" {
		t.Errorf("GetChunksBySeq: %+v", m)
	}

	if _, err := store.GetChunk(ctx, 999); err == nil {
		t.Error("expected not found error")
	}
}

func TestSQLiteStorage_DuplicateIDRejected(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.InsertChunk(ctx, &models.Chunk{ID: "x", Source: "s", Content: "c", Category: "d"}); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertChunk(ctx, &models.Chunk{ID: "x", Source: "s", Content: "c", Category: "d"}); err == nil {
		t.Error("expected unique constraint error")
	}
}

func TestSQLiteStorage_SourcesAndCounts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	for i, src := range []string{"b.pdf", "a.pdf", "b.pdf"} {
		ch := &models.Chunk{ID: string(rune('p' + i)), Source: src, Content: "text", Category: "document"}
		if err := store.InsertChunk(ctx, ch); err != nil {
			t.Fatal(err)
		}
	}
	sources, err := store.ListSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[0] != "a.pdf" || sources[1] != "b.pdf" {
		t.Errorf("ListSources = %v", sources)
	}
	n, _ := store.CountChunks(ctx)
	if n != 3 {
		t.Errorf("CountChunks = %d", n)
	}
	n, _ = store.CountChunksBySource(ctx, "b.pdf")
	if n != 2 {
		t.Errorf("CountChunksBySource = %d", n)
	}
}

func TestSQLiteStorage_DeleteChunk(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	ch := &models.Chunk{ID: "x", Source: "s.pdf", Content: "c", Category: "d"}
	if err := store.InsertChunk(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteChunk(ctx, ch.Seq); err != nil {
		t.Fatal(err)
	}
	sources, _ := store.ListSources(ctx)
	if len(sources) != 0 {
		t.Errorf("source should be gone: %v", sources)
	}
}

func TestSQLiteStorage_Clear(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.InsertChunk(ctx, &models.Chunk{ID: "x", Source: "s.pdf", Content: "c", Category: "d"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	sources, err := store.ListSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 0 {
		t.Errorf("ListSources after Clear = %v", sources)
	}
	ch := &models.Chunk{ID: "x", Source: "s.pdf", Content: "c", Category: "d"}
	if err := store.InsertChunk(ctx, ch); err != nil {
		t.Fatalf("insert after clear: %v", err)
	}
	if ch.Seq != 1 {
		t.Errorf("sequence should restart after Clear, got %d", ch.Seq)
	}
}
