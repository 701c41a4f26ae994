package index

import (
	"bytes"
	"encoding/gob"
	"sort"

	"github.com/arjunkori/codelens/internal/storage"
	"github.com/arjunkori/codelens/internal/types"
)

// OverviewIndex stores one RepositoryOverview per indexed repo, with both a
// single embedding and a row in a dedicated BM25 corpus kept separate from
// the code-element indexes — overviews are never co-mingled with elements.
type OverviewIndex struct {
	overviews map[string]*types.RepositoryOverview // repoName → overview
	bm25      *BM25
	persist   *storage.Store

	SemanticWeight float64
	KeywordWeight  float64
}

// NewOverviewIndex creates an empty overview index.
func NewOverviewIndex() *OverviewIndex {
	return &OverviewIndex{
		overviews:      make(map[string]*types.RepositoryOverview),
		bm25:           NewBM25(1.5, 0.75),
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
	}
}

// AttachPersistence binds a Badger-backed store for Save/Delete/LoadAll.
func (oi *OverviewIndex) AttachPersistence(s *storage.Store) {
	oi.persist = s
}

// overviewText builds the BM25 document text for an overview.
func overviewText(ov *types.RepositoryOverview) string {
	return ov.Summary + " " + ov.StructureText + " " + ov.ReadmeExcerpt
}

type overviewRecord struct {
	Overview types.RepositoryOverview
	Vector   []float32
}

// Save writes (or overwrites) a repo's overview, its embedding, and rebuilds
// the in-memory BM25 corpus. This is one of the only three write paths
// (Save, Delete, LoadAll) into the overview index.
func (oi *OverviewIndex) Save(repoName string, content string, structureText string, embedding []float32, readmeExcerpt string) error {
	ov := &types.RepositoryOverview{
		RepoName:      repoName,
		Summary:       content,
		StructureText: structureText,
		ReadmeExcerpt: readmeExcerpt,
		Embedding:     embedding,
	}
	oi.overviews[repoName] = ov
	oi.rebuildBM25()

	if oi.persist != nil {
		rec := overviewRecord{Overview: *ov, Vector: embedding}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
			return err
		}
		if err := oi.persist.Put("overview::"+repoName, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a repo's overview from the index and persistence.
func (oi *OverviewIndex) Delete(repoName string) error {
	delete(oi.overviews, repoName)
	oi.rebuildBM25()
	if oi.persist != nil {
		return oi.persist.Delete("overview::" + repoName)
	}
	return nil
}

// LoadAll repopulates the index from the attached persistence store,
// replacing any in-memory overviews already present.
func (oi *OverviewIndex) LoadAll() error {
	if oi.persist == nil {
		return errNoPersistence
	}
	overviews := make(map[string]*types.RepositoryOverview)
	err := oi.persist.ScanPrefix("overview::", func(key string, value []byte) error {
		var rec overviewRecord
		if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&rec); err != nil {
			return err
		}
		ov := rec.Overview
		ov.Embedding = rec.Vector
		repoName := key[len("overview::"):]
		overviews[repoName] = &ov
		return nil
	})
	if err != nil {
		return err
	}
	oi.overviews = overviews
	oi.rebuildBM25()
	return nil
}

func (oi *OverviewIndex) rebuildBM25() {
	oi.bm25 = NewBM25(1.5, 0.75)
	for repoName, ov := range oi.overviews {
		oi.bm25.AddDocument(repoName, overviewText(ov))
	}
}

// OverviewResult holds a search_overviews hit.
type OverviewResult struct {
	RepoName string
	Overview *types.RepositoryOverview
	Score    float64
}

// SearchOverviews blends semantic similarity against queryVec with BM25
// relevance of bm25Query across the overview corpus, returning the top k
// repos scoring at least minScore.
func (oi *OverviewIndex) SearchOverviews(queryVec []float32, bm25Query string, topK int, minScore float64) []OverviewResult {
	scores := make(map[string]float64, len(oi.overviews))

	if len(queryVec) > 0 {
		for repoName, ov := range oi.overviews {
			if len(ov.Embedding) == 0 {
				continue
			}
			scores[repoName] += cosineSimilarity(queryVec, ov.Embedding) * oi.SemanticWeight
		}
	}

	if bm25Query != "" && oi.bm25.DocCount() > 0 {
		bm25Results := oi.bm25.Search(bm25Query, oi.bm25.DocCount())
		maxBM25 := 0.0
		for _, r := range bm25Results {
			if r.Score > maxBM25 {
				maxBM25 = r.Score
			}
		}
		for _, r := range bm25Results {
			normalized := 0.0
			if maxBM25 > 0 {
				normalized = r.Score / maxBM25
			}
			scores[r.ID] += normalized * oi.KeywordWeight
		}
	}

	var results []OverviewResult
	for repoName, score := range scores {
		if score < minScore {
			continue
		}
		results = append(results, OverviewResult{
			RepoName: repoName,
			Overview: oi.overviews[repoName],
			Score:    score,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

// Get returns a repo's overview, or nil if none is indexed.
func (oi *OverviewIndex) Get(repoName string) *types.RepositoryOverview {
	return oi.overviews[repoName]
}

// Count returns the number of indexed repo overviews.
func (oi *OverviewIndex) Count() int {
	return len(oi.overviews)
}
