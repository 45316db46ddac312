package knowledge_test

import (
	"errors"
	"testing"

	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/testutil"
)

func newTestStore(t *testing.T) *knowledge.Store {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	store, err := knowledge.New(pool, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreEnsureIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, created, err := store.Ensure(ctx, "kb")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !created {
		t.Error("first Ensure should report created")
	}
	if col.Name != "kb" {
		t.Errorf("collection name = %q", col.Name)
	}

	again, created, err := store.Ensure(ctx, "kb")
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if created {
		t.Error("second Ensure should not report created")
	}
	if again.Name != col.Name {
		t.Errorf("second handle names %q", again.Name)
	}

	if _, _, err := store.Ensure(ctx, ""); err == nil {
		t.Error("expected error for empty collection name")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, err := store.Ensure(ctx, "kb")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	docs := []knowledge.Document{{
		ID:       "d1",
		Text:     "Nexobotics offers 24/7 support.",
		Metadata: map[string]string{"category": "support", "source": "test"},
	}}
	vec := []float32{1, 0, 0}

	if err := store.Upsert(ctx, col, docs, [][]float32{vec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Search(ctx, col, vec, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if got.Text != "Nexobotics offers 24/7 support." {
		t.Errorf("text = %q", got.Text)
	}
	if got.Metadata["category"] != "support" || got.Metadata["source"] != "test" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	// Identical vector: cosine distance ~0.
	if got.Distance > 1e-6 {
		t.Errorf("distance = %v, want ~0", got.Distance)
	}
}

func TestStoreUpsertReplacesDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")
	vec := []float32{1, 0, 0}

	if err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d1", Text: "old text"}}, [][]float32{vec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d1", Text: "new text"}}, [][]float32{vec}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	count, err := store.Count(ctx, col)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (same id must replace)", count)
	}

	results, err := store.Search(ctx, col, vec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Text != "new text" {
		t.Errorf("results = %+v, want the replaced text", results)
	}
}

func TestStoreDimensionPinning(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")

	// First upsert pins the collection to 3 dimensions.
	if err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d1", Text: "t"}}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d2", Text: "t"}}, [][]float32{{1, 0, 0, 0}})
	if !errors.Is(err, knowledge.ErrDimensionMismatch) {
		t.Errorf("upsert with wrong dimension: got %v, want ErrDimensionMismatch", err)
	}

	if _, err := store.Search(ctx, col, []float32{1, 0}, 5); !errors.Is(err, knowledge.ErrDimensionMismatch) {
		t.Errorf("search with wrong dimension: got %v, want ErrDimensionMismatch", err)
	}

	// The failed batch must not have been stored.
	count, err := store.Count(ctx, col)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestStoreMixedBatchRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")

	err := store.Upsert(ctx, col,
		[]knowledge.Document{
			{ID: "d1", Text: "fits"},
			{ID: "d2", Text: "does not"},
		},
		[][]float32{{1, 0, 0}, {1, 0}},
	)
	if !errors.Is(err, knowledge.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}

	count, err := store.Count(ctx, col)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 (batch must apply atomically)", count)
	}

	// The aborted batch must not have pinned the dimension either.
	if err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d1", Text: "t"}}, [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Errorf("upsert after rollback: %v", err)
	}
}

func TestStoreSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "empty")

	results, err := store.Search(ctx, col, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty collection", len(results))
	}
}

func TestStoreSearchOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")

	docs := []knowledge.Document{
		{ID: "far", Text: "far"},
		{ID: "near", Text: "near"},
		{ID: "mid", Text: "mid"},
	}
	vectors := [][]float32{
		{0, 1, 0},         // orthogonal to the query
		{1, 0, 0},         // identical to the query
		{0.7, 0.7, 0},     // in between
	}
	if err := store.Upsert(ctx, col, docs, vectors); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Search(ctx, col, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	wantOrder := []string{"near", "mid", "far"}
	for i, want := range wantOrder {
		if results[i].Text != want {
			t.Errorf("result %d = %q, want %q (full order %+v)", i, results[i].Text, want, results)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not ascending: %v", results)
		}
	}

	// topK truncates.
	top, err := store.Search(ctx, col, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search topK=1: %v", err)
	}
	if len(top) != 1 || top[0].Text != "near" {
		t.Errorf("topK=1 = %+v, want just the nearest", top)
	}
}

func TestStoreSearchTieBreaksByID(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")

	// Identical vectors: distance ties, id order decides.
	same := []float32{1, 0, 0}
	docs := []knowledge.Document{
		{ID: "b", Text: "b"},
		{ID: "a", Text: "a"},
		{ID: "c", Text: "c"},
	}
	if err := store.Upsert(ctx, col, docs, [][]float32{same, same, same}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Search(ctx, col, same, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := []string{results[0].Text, results[1].Text, results[2].Text}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestStoreDropAndRecreate(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")
	if err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d1", Text: "t"}}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := store.Drop(ctx, "kb"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	// Dropping again is a no-op.
	if err := store.Drop(ctx, "kb"); err != nil {
		t.Fatalf("second Drop: %v", err)
	}

	fresh, created, err := store.Ensure(ctx, "kb")
	if err != nil {
		t.Fatalf("Ensure after drop: %v", err)
	}
	if !created {
		t.Error("recreated collection should report created")
	}
	count, err := store.Count(ctx, fresh)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("recreated collection has %d documents", count)
	}

	// Fresh collection accepts a new dimension.
	if err := store.Upsert(ctx, fresh,
		[]knowledge.Document{{ID: "d1", Text: "t"}}, [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Errorf("upsert with new dimension after drop: %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	col, _, _ := store.Ensure(ctx, "kb")
	if err := store.Upsert(ctx, col,
		[]knowledge.Document{{ID: "d1", Text: "t"}}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := store.Delete(ctx, col, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, col, "missing"); err != nil {
		t.Fatalf("Delete of absent id: %v", err)
	}

	count, err := store.Count(ctx, col)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d after delete", count)
	}
}

func TestStoreCollectionsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	a, _, _ := store.Ensure(ctx, "a")
	b, _, _ := store.Ensure(ctx, "b")

	if err := store.Upsert(ctx, a,
		[]knowledge.Document{{ID: "d1", Text: "only in a"}}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Search(ctx, b, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("documents leaked across collections: %+v", results)
	}

	// Collections pin dimensions independently.
	if err := store.Upsert(ctx, b,
		[]knowledge.Document{{ID: "d1", Text: "only in b"}}, [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Errorf("upsert with different dimension in second collection: %v", err)
	}
}
