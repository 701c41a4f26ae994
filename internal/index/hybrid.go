package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arjunkori/codelens/internal/graph"
	"github.com/arjunkori/codelens/internal/llm"
	"github.com/arjunkori/codelens/internal/types"
)

// HybridRetriever combines vector semantic search, BM25 keyword search, and
// (when a code graph is attached) neighbor-propagated graph scoring.
type HybridRetriever struct {
	vectorStore *VectorStore
	bm25        *LexicalIndex
	elements    map[string]*types.CodeElement // ID → element
	graphs      *graph.CodeGraphs

	// Weights for combining scores. PseudoWeight is not exposed for tuning
	// (the contract fixes it at 0.4) but is kept as a field for symmetry and
	// so tests can read it back.
	SemanticWeight float64
	KeywordWeight  float64
	PseudoWeight   float64
	GraphWeight    float64
}

// HybridResult holds a combined search result.
type HybridResult struct {
	Element *types.CodeElement
	Score   float64
	Source  string // "semantic", "keyword", or "hybrid"
}

// Filters narrows results by language, element type, or a path substring,
// applied after score combination and type-bias reranking.
type Filters struct {
	Language      string
	Type          string
	PathSubstring string
}

func (f Filters) empty() bool {
	return f.Language == "" && f.Type == "" && f.PathSubstring == ""
}

func (f Filters) matches(elem *types.CodeElement) bool {
	if f.Language != "" && !strings.EqualFold(elem.Language, f.Language) {
		return false
	}
	if f.Type != "" && elem.Type != f.Type {
		return false
	}
	if f.PathSubstring != "" && !strings.Contains(elem.RelativePath, f.PathSubstring) {
		return false
	}
	return true
}

// RetrieveRequest is the full parameter set for Retrieve, mirroring the
// retrieve(query, filters, repo_filter, pseudocode, ...) contract.
type RetrieveRequest struct {
	Query      string
	QueryVec   []float32
	PseudoVec  []float32 // embedding of an optional pseudocode hint; nil to skip the second semantic pass
	Filters    Filters
	RepoFilter []string
	MaxResults int
}

// NewHybridRetriever creates a new hybrid retriever. lex carries both the
// full and active filtered-tier BM25 corpora — Retrieve's lexical pass always
// queries whichever of the two is currently active.
func NewHybridRetriever(vs *VectorStore, lex *LexicalIndex) *HybridRetriever {
	return &HybridRetriever{
		vectorStore:    vs,
		bm25:           lex,
		elements:       make(map[string]*types.CodeElement),
		SemanticWeight: 0.6,
		KeywordWeight:  0.3,
		PseudoWeight:   0.4,
		GraphWeight:    0.1,
	}
}

// AttachGraphs wires a code graph for neighbor-expansion scoring. Passing nil
// disables graph contribution; Retrieve treats a missing graph as a no-op,
// not an error.
func (hr *HybridRetriever) AttachGraphs(g *graph.CodeGraphs) {
	hr.graphs = g
}

func buildBM25Text(elem *types.CodeElement) string {
	var parts []string
	if elem.Name != "" {
		parts = append(parts, elem.Name)
	}
	if elem.Type != "" {
		parts = append(parts, elem.Type)
	}
	if elem.Language != "" {
		parts = append(parts, elem.Language)
	}
	if elem.RelativePath != "" {
		parts = append(parts, elem.RelativePath)
	}
	if elem.Docstring != "" {
		parts = append(parts, elem.Docstring)
	}
	if elem.Signature != "" {
		parts = append(parts, elem.Signature)
	}
	if elem.Summary != "" {
		parts = append(parts, elem.Summary)
	}
	if elem.Code != "" {
		code := elem.Code
		if len(code) > 1000 {
			code = code[:1000]
		}
		parts = append(parts, code)
	}
	return strings.Join(parts, " ")
}

func buildEmbeddingText(elem *types.CodeElement) string {
	var parts []string
	if elem.Type != "" {
		parts = append(parts, fmt.Sprintf("Type: %s", elem.Type))
	}
	if elem.Name != "" {
		parts = append(parts, fmt.Sprintf("Name: %s", elem.Name))
	}
	if elem.Signature != "" {
		parts = append(parts, fmt.Sprintf("Signature: %s", elem.Signature))
	}
	if elem.Docstring != "" {
		parts = append(parts, fmt.Sprintf("Documentation: %s", elem.Docstring))
	}
	if elem.Summary != "" {
		parts = append(parts, elem.Summary)
	}
	if elem.Code != "" {
		code := elem.Code
		if len(code) > 10000 {
			code = code[:10000] + "..."
		}
		parts = append(parts, fmt.Sprintf("Code:\n%s", code))
	}
	return strings.Join(parts, "\n")
}

// IndexElements indexes code elements into both BM25 and vector stores.
// embedder may be nil if embeddings are not available.
func (hr *HybridRetriever) IndexElements(elements []types.CodeElement, embedder *llm.Embedder) error {
	// Store element references
	for i := range elements {
		elem := &elements[i]
		hr.elements[elem.ID] = elem

		// Add to BM25
		searchText := buildBM25Text(elem)
		hr.bm25.AddDocument(elem.ID, elem.RepoName, searchText)
	}

	// Generate and store embeddings if embedder is available
	if embedder != nil {
		texts := make([]string, len(elements))
		for i := range elements {
			elem := &elements[i]
			texts[i] = buildEmbeddingText(elem)
		}

		embeddings, err := embedder.EmbedTexts(texts)
		if err != nil {
			// Non-fatal: continue without vector search
			return err
		}

		for i, emb := range embeddings {
			if emb != nil {
				hr.vectorStore.Add(elements[i].ID, elements[i].RepoName, emb)
			}
		}
	}

	return nil
}

// diversityPenalty is the per-repeat-file score multiplier applied during
// the diversify pass: the Nth hit from an already-seen file is scaled by
// (1-diversityPenalty)^(N-1), so repeats decay geometrically rather than
// being capped outright.
const diversityPenalty = 0.1

// semanticTopK / pseudoTopK / lexicalTopK are the fixed candidate-gathering
// widths from the retrieval contract — independent of the caller's
// MaxResults, which only bounds the final page after reranking.
const (
	semanticTopK = 20
	pseudoTopK   = 10
	lexicalTopK  = 10
	graphTopN    = 10 // only the top N results get neighbor expansion
	graphMaxHops = 2
)

// Search is a convenience wrapper over Retrieve for callers that don't need
// filters or a pseudocode hint.
func (hr *HybridRetriever) Search(query string, queryVec []float32, topK int, repoFilter ...string) []HybridResult {
	return hr.Retrieve(RetrieveRequest{
		Query:      query,
		QueryVec:   queryVec,
		RepoFilter: repoFilter,
		MaxResults: topK,
	})
}

// Retrieve runs the full non-agency hybrid search algorithm: semantic search,
// an optional second semantic pass over a pseudocode hint, lexical search,
// score combination (with graph-neighbor propagation over the top results),
// type-bias reranking, filters, diversify-by-file, and a final repo-filter
// safety pass.
func (hr *HybridRetriever) Retrieve(req RetrieveRequest) []HybridResult {
	filterSet := map[string]bool{}
	for _, r := range req.RepoFilter {
		filterSet[r] = true
	}

	components := make(map[string]*types.ScoreComponents)
	comp := func(id string) *types.ScoreComponents {
		c, ok := components[id]
		if !ok {
			c = &types.ScoreComponents{}
			components[id] = c
		}
		return c
	}

	// Lexical search
	bm25Limit := lexicalTopK
	if len(filterSet) > 0 {
		bm25Limit *= 5 // over-fetch so a repo filter doesn't starve results
	}
	bm25Results := hr.bm25.Search(req.Query, bm25Limit, req.RepoFilter...)
	maxBM25 := 0.0
	for _, r := range bm25Results {
		if r.Score > maxBM25 {
			maxBM25 = r.Score
		}
	}
	for _, r := range bm25Results {
		if len(filterSet) > 0 && !hr.inFilter(r.ID, filterSet) {
			continue
		}
		normalized := 0.0
		if maxBM25 > 0 {
			normalized = r.Score / maxBM25
		}
		comp(r.ID).Lexical += normalized * hr.KeywordWeight
	}

	// Semantic search
	if len(req.QueryVec) > 0 && hr.vectorStore.Count() > 0 {
		vecLimit := semanticTopK
		if len(filterSet) > 0 {
			vecLimit *= 5
		}
		vecResults := hr.vectorStore.Search(req.QueryVec, vecLimit, req.RepoFilter...)
		for _, r := range vecResults {
			comp(r.ID).Semantic += r.Score * hr.SemanticWeight
		}
	}

	// Second semantic pass over a pseudocode hint, if present.
	if len(req.PseudoVec) > 0 && hr.vectorStore.Count() > 0 {
		vecLimit := pseudoTopK
		if len(filterSet) > 0 {
			vecLimit *= 5
		}
		pseudoResults := hr.vectorStore.Search(req.PseudoVec, vecLimit, req.RepoFilter...)
		for _, r := range pseudoResults {
			comp(r.ID).Pseudo += r.Score * hr.PseudoWeight
		}
	}

	// Graph contribution: propagate 0.5 × graph_weight × parent's current
	// total to each neighbor (up to graphMaxHops) of the top graphTopN
	// results so far. A missing/sparse graph degrades to a no-op.
	if hr.graphs != nil {
		type parentScore struct {
			id    string
			total float64
		}
		var parents []parentScore
		for id, c := range components {
			parents = append(parents, parentScore{id: id, total: c.Sum()})
		}
		sort.Slice(parents, func(i, j int) bool { return parents[i].total > parents[j].total })
		if len(parents) > graphTopN {
			parents = parents[:graphTopN]
		}
		for _, p := range parents {
			for _, neighborID := range hr.graphs.Neighbors(p.id, graphMaxHops) {
				if len(filterSet) > 0 && !hr.inFilter(neighborID, filterSet) {
					continue
				}
				if _, ok := hr.elements[neighborID]; !ok {
					continue
				}
				comp(neighborID).Graph += p.total * 0.5 * hr.GraphWeight
			}
		}
	}

	// Re-rank with a type bias, applied uniformly across every score
	// component (not just the sum) so partial scores stay comparable.
	scores := make(map[string]float64, len(components))
	for id, c := range components {
		elem, ok := hr.elements[id]
		weight := 1.0
		if ok {
			switch elem.Type {
			case "function":
				weight = 1.2
			case "class":
				weight = 1.1
			case "file":
				weight = 0.9
			case "documentation":
				weight = 0.8
			}
		}
		c.Semantic *= weight
		c.Pseudo *= weight
		c.Lexical *= weight
		c.Graph *= weight
		scores[id] = c.Sum()
	}

	// Apply filters (language/type/path substring).
	if !req.Filters.empty() {
		for id := range scores {
			elem, ok := hr.elements[id]
			if !ok || !req.Filters.matches(elem) {
				delete(scores, id)
			}
		}
	}

	// Sort by combined score
	type scored struct {
		id    string
		score float64
	}
	var sorted_ []scored
	for id, s := range scores {
		sorted_ = append(sorted_, scored{id: id, score: s})
	}
	sort.Slice(sorted_, func(i, j int) bool {
		return sorted_[i].score > sorted_[j].score
	})

	// Diversify by file: each additional hit from an already-seen file has
	// its score multiplied by (1-diversityPenalty), so repeats decay
	// geometrically rather than being capped outright or dropped.
	perFile := make(map[string]int)
	for i := range sorted_ {
		elem, ok := hr.elements[sorted_[i].id]
		if !ok {
			continue
		}
		key := elem.RepoName + "::" + elem.RelativePath
		n := perFile[key]
		perFile[key] = n + 1
		for j := 0; j < n; j++ {
			sorted_[i].score *= 1 - diversityPenalty
		}
	}
	sort.Slice(sorted_, func(i, j int) bool {
		return sorted_[i].score > sorted_[j].score
	})

	// Final repo-filter safety pass: drop anything that doesn't belong,
	// whatever path it came in through.
	if len(filterSet) > 0 {
		kept := sorted_[:0]
		for _, s := range sorted_ {
			elem, ok := hr.elements[s.id]
			if ok && filterSet[elem.RepoName] {
				kept = append(kept, s)
			}
		}
		sorted_ = kept
	}

	topK := req.MaxResults
	if topK <= 0 || topK > len(sorted_) {
		topK = len(sorted_)
	}

	results := make([]HybridResult, topK)
	for i := 0; i < topK; i++ {
		elem := hr.elements[sorted_[i].id]
		if elem != nil {
			elem.ScoreComponents = components[sorted_[i].id]
			elem.TotalScore = sorted_[i].score
		}
		results[i] = HybridResult{
			Element: elem,
			Score:   sorted_[i].score,
			Source:  "hybrid",
		}
	}
	return results
}

// inFilter reports whether id's element belongs to one of the filtered repos.
func (hr *HybridRetriever) inFilter(id string, filterSet map[string]bool) bool {
	elem, ok := hr.elements[id]
	return ok && filterSet[elem.RepoName]
}

// ElementCount returns the total number of indexed elements.
func (hr *HybridRetriever) ElementCount() int {
	return len(hr.elements)
}
