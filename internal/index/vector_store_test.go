package index

import (
	"math"
	"testing"

	"github.com/arjunkori/codelens/internal/storage"
)

func TestVectorStoreAddAndSearch(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a", "repo", []float32{1, 0, 0})
	vs.Add("b", "repo", []float32{0, 1, 0})
	vs.Add("c", "repo", []float32{0.9, 0.1, 0})

	results := vs.Search([]float32{1, 0, 0}, 2)
	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected 'a' first, got %s", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("expected 'c' second, got %s", results[1].ID)
	}
}

func TestVectorStoreEmpty(t *testing.T) {
	vs := NewVectorStore()
	results := vs.Search([]float32{1, 0}, 5)
	if len(results) != 0 {
		t.Error("expected no results from empty store")
	}
}

func TestVectorStoreSearchEmptyQuery(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a", "repo", []float32{1, 0})
	results := vs.Search(nil, 5)
	if len(results) != 0 {
		t.Error("expected no results for nil query")
	}
	results = vs.Search([]float32{}, 5)
	if len(results) != 0 {
		t.Error("expected no results for empty query")
	}
}

func TestVectorStoreSearchTopKExceedsResults(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a", "repo", []float32{1, 0})

	results := vs.Search([]float32{1, 0}, 100)
	if len(results) != 1 {
		t.Errorf("expected 1 result when topK > available, got %d", len(results))
	}
}

func TestCosineSimilarity(t *testing.T) {
	// Same vector → 1.0
	s := cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	if math.Abs(s-1.0) > 0.001 {
		t.Errorf("same vector similarity = %f, want ~1.0", s)
	}

	// Orthogonal → 0.0
	s = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(s) > 0.001 {
		t.Errorf("orthogonal similarity = %f, want ~0.0", s)
	}
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	s := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	if s != 0 {
		t.Errorf("length mismatch similarity = %f, want 0", s)
	}
}

func TestCosineSimilarityEmpty(t *testing.T) {
	s := cosineSimilarity([]float32{}, []float32{})
	if s != 0 {
		t.Errorf("empty similarity = %f, want 0", s)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	s := cosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	if s != 0 {
		t.Errorf("zero vector similarity = %f, want 0", s)
	}
}

func TestVectorStoreCount(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a", "repo", []float32{1, 0})
	vs.Add("b", "repo", []float32{0, 1})
	if got := vs.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := vs.Dimension(); got != 2 {
		t.Errorf("Dimension() = %d, want 2", got)
	}
}

func TestVectorStoreDimensionEmpty(t *testing.T) {
	vs := NewVectorStore()
	if got := vs.Dimension(); got != 0 {
		t.Errorf("Dimension() = %d for empty store, want 0", got)
	}
}

func TestVectorStoreGet(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a", "repo", []float32{1, 2, 3})

	got := vs.Get("a")
	if got == nil {
		t.Fatal("Get(a) returned nil")
	}
	if len(got) != 3 {
		t.Errorf("Get(a) len = %d, want 3", len(got))
	}
}

func TestVectorStoreGetNotFound(t *testing.T) {
	vs := NewVectorStore()
	got := vs.Get("nonexistent")
	if got != nil {
		t.Errorf("Get(nonexistent) should return nil, got %v", got)
	}
}

func TestNewVectorStore(t *testing.T) {
	vs := NewVectorStore()
	if vs == nil {
		t.Fatal("NewVectorStore returned nil")
	}
	if vs.Count() != 0 {
		t.Error("new store should be empty")
	}
}

func TestVectorStoreRepoFilter(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a1", "repoA", []float32{1, 0, 0})
	vs.Add("a2", "repoA", []float32{0.95, 0.1, 0})
	vs.Add("b1", "repoB", []float32{1, 0, 0})

	results := vs.Search([]float32{1, 0, 0}, 5, "repoA")
	if len(results) != 2 {
		t.Fatalf("expected 2 results scoped to repoA, got %d", len(results))
	}
	for _, r := range results {
		if r.ID == "b1" {
			t.Error("repoA filter leaked repoB result")
		}
	}
}

func TestVectorStoreMergeFrom(t *testing.T) {
	vs1 := NewVectorStore()
	vs1.Add("a", "repoA", []float32{1, 0})

	vs2 := NewVectorStore()
	vs2.Add("b", "repoB", []float32{0, 1})

	vs1.MergeFrom(vs2)
	if vs1.Count() != 2 {
		t.Errorf("MergeFrom: Count() = %d, want 2", vs1.Count())
	}
	if vs1.Get("b") == nil {
		t.Error("MergeFrom: expected merged vector 'b' to be present")
	}
}

func TestVectorStoreDeleteBy(t *testing.T) {
	vs := NewVectorStore()
	vs.Add("a1", "repoA", []float32{1, 0})
	vs.Add("a2", "repoA", []float32{0, 1})
	vs.Add("b1", "repoB", []float32{1, 1})

	removed := vs.DeleteBy("repoA")
	if removed != 2 {
		t.Errorf("DeleteBy(repoA) removed %d, want 2", removed)
	}
	if vs.Count() != 1 {
		t.Errorf("Count() after DeleteBy = %d, want 1", vs.Count())
	}
	if vs.Get("b1") == nil {
		t.Error("DeleteBy(repoA) should not remove repoB vectors")
	}
}

func TestVectorStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := storage.Open("")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	vs := NewVectorStore()
	vs.AttachPersistence(store)
	vs.Add("a", "repoA", []float32{1, 2, 3})
	vs.Add("b", "repoB", []float32{4, 5, 6})

	if err := vs.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewVectorStore()
	reloaded.AttachPersistence(store)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Count() != 2 {
		t.Fatalf("reloaded Count() = %d, want 2", reloaded.Count())
	}
	got := reloaded.Get("a")
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("reloaded vector 'a' = %v, want [1 2 3]", got)
	}
}

func TestVectorStoreSaveWithoutPersistenceErrors(t *testing.T) {
	vs := NewVectorStore()
	if err := vs.Save(); err == nil {
		t.Error("expected Save without attached persistence to error")
	}
	if err := vs.Load(); err == nil {
		t.Error("expected Load without attached persistence to error")
	}
}
