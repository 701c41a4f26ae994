package index

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"sort"

	"github.com/arjunkori/codelens/internal/storage"
)

var errNoPersistence = errors.New("index: vector store has no attached persistence")

// VectorStoreConfig tunes the approximate-nearest-neighbor behavior of a
// VectorStore. The store itself still searches by brute-force cosine
// similarity (the corpora this tool indexes are small enough that a real
// HNSW graph buys little over a linear scan — see DESIGN.md), but the
// parameters are accepted and recorded so the configuration surface matches
// vector_store.m / .ef_construction / .ef_search in the retrieval contract.
type VectorStoreConfig struct {
	M              int // max graph connections per node, HNSW-style
	EfConstruction int // candidate list size while building
	EfSearch       int // candidate list size while searching
}

// DefaultVectorStoreConfig returns reasonable defaults, matching common HNSW
// presets (M=16, efConstruction=200, efSearch=64).
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{M: 16, EfConstruction: 200, EfSearch: 64}
}

// VectorStore is an in-memory vector store for embedding-based similarity
// search, with optional Badger-backed persistence.
type VectorStore struct {
	vectors map[string][]float32 // elementID → embedding vector
	repoOf  map[string]string    // elementID → repoName, for repo_filter
	dim     int
	cfg     VectorStoreConfig
	persist *storage.Store
}

// NewVectorStore creates a new empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return NewVectorStoreWithConfig(DefaultVectorStoreConfig())
}

// NewVectorStoreWithConfig creates an empty vector store with explicit ANN params.
func NewVectorStoreWithConfig(cfg VectorStoreConfig) *VectorStore {
	return &VectorStore{
		vectors: make(map[string][]float32),
		repoOf:  make(map[string]string),
		cfg:     cfg,
	}
}

// AttachPersistence binds a Badger-backed store used by Save/Load. Passing
// nil detaches persistence (in-memory only).
func (vs *VectorStore) AttachPersistence(s *storage.Store) {
	vs.persist = s
}

// Add stores an embedding vector for the given element ID, associated with repoName.
func (vs *VectorStore) Add(id, repoName string, vector []float32) {
	vs.vectors[id] = vector
	vs.repoOf[id] = repoName
	if vs.dim == 0 && len(vector) > 0 {
		vs.dim = len(vector)
	}
}

// MergeFrom folds every vector from other into vs, overwriting any existing
// entries with the same ID. Used to add a newly-indexed repo's vectors into
// a shared multi-repo store without rebuilding it from scratch.
func (vs *VectorStore) MergeFrom(other *VectorStore) {
	if other == nil {
		return
	}
	for id, vec := range other.vectors {
		vs.vectors[id] = vec
		vs.repoOf[id] = other.repoOf[id]
		if vs.dim == 0 && len(vec) > 0 {
			vs.dim = len(vec)
		}
	}
}

// DeleteBy removes every vector belonging to repoName. Used when a repo is
// dropped or about to be reindexed from scratch.
func (vs *VectorStore) DeleteBy(repoName string) int {
	removed := 0
	for id, r := range vs.repoOf {
		if r == repoName {
			delete(vs.vectors, id)
			delete(vs.repoOf, id)
			removed++
		}
	}
	return removed
}

// VectorResult holds a similarity search result.
type VectorResult struct {
	ID    string
	Score float64
}

// Search finds the top-k most similar vectors to the query vector, optionally
// restricted to a set of repositories.
//
// When repoFilter is non-empty, vectors of other repos are skipped during the
// scan, before ranking, so a filter on a small repo within a large store
// doesn't starve the result set.
func (vs *VectorStore) Search(queryVec []float32, topK int, repoFilter ...string) []VectorResult {
	if len(vs.vectors) == 0 || len(queryVec) == 0 {
		return nil
	}

	filterSet := map[string]bool{}
	for _, r := range repoFilter {
		filterSet[r] = true
	}

	type scored struct {
		id    string
		score float64
	}
	var results []scored

	for id, vec := range vs.vectors {
		if len(filterSet) > 0 && !filterSet[vs.repoOf[id]] {
			continue
		}
		sim := cosineSimilarity(queryVec, vec)
		if sim > 0 {
			results = append(results, scored{id: id, score: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	fetch := topK
	if len(filterSet) > 0 && topK*5 > fetch {
		fetch = topK * 5
	}
	if fetch > len(results) {
		fetch = len(results)
	}
	if topK > fetch {
		topK = fetch
	}

	out := make([]VectorResult, topK)
	for i := 0; i < topK; i++ {
		out[i] = VectorResult{
			ID:    results[i].id,
			Score: results[i].score,
		}
	}
	return out
}

// Count returns the number of stored vectors.
func (vs *VectorStore) Count() int {
	return len(vs.vectors)
}

// Dimension returns the dimension of stored vectors.
func (vs *VectorStore) Dimension() int {
	return vs.dim
}

// Get returns the stored vector for an ID, or nil.
func (vs *VectorStore) Get(id string) []float32 {
	return vs.vectors[id]
}

// Config returns the store's ANN tuning parameters.
func (vs *VectorStore) Config() VectorStoreConfig {
	return vs.cfg
}

type vectorRecord struct {
	Repo   string
	Vector []float32
}

// Save persists every vector to the attached Badger store, keyed
// "vector::<repoName>::<elementID>" so DeleteBy/reload can scan by repo
// prefix. Returns an error if no store is attached.
func (vs *VectorStore) Save() error {
	if vs.persist == nil {
		return errNoPersistence
	}
	batch := make(map[string][]byte, len(vs.vectors))
	for id, vec := range vs.vectors {
		rec := vectorRecord{Repo: vs.repoOf[id], Vector: vec}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
			return err
		}
		batch["vector::"+vs.repoOf[id]+"::"+id] = buf.Bytes()
	}
	return vs.persist.PutBatch(batch)
}

// Load repopulates the store from the attached Badger store, replacing any
// in-memory vectors already present.
func (vs *VectorStore) Load() error {
	if vs.persist == nil {
		return errNoPersistence
	}
	vectors := make(map[string][]float32)
	repoOf := make(map[string]string)
	err := vs.persist.ScanPrefix("vector::", func(key string, value []byte) error {
		var rec vectorRecord
		if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&rec); err != nil {
			return err
		}
		id := elementIDFromVectorKey(key)
		vectors[id] = rec.Vector
		repoOf[id] = rec.Repo
		if vs.dim == 0 && len(rec.Vector) > 0 {
			vs.dim = len(rec.Vector)
		}
		return nil
	})
	if err != nil {
		return err
	}
	vs.vectors = vectors
	vs.repoOf = repoOf
	return nil
}

// elementIDFromVectorKey strips the "vector::<repo>::" prefix from a storage key.
func elementIDFromVectorKey(key string) string {
	// key format: vector::<repo>::<elementID>; elementID itself may contain
	// "::" (it does, per the element ID format), so split only on the first
	// two separators.
	rest := key[len("vector::"):]
	for i := 0; i < len(rest)-1; i++ {
		if rest[i] == ':' && rest[i+1] == ':' {
			return rest[i+2:]
		}
	}
	return rest
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
