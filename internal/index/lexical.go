package index

// LexicalIndex wraps two BM25 corpora — full (every loaded repo) and
// filtered (the active subset currently in scope for retrieval) — so a
// query against a narrowed repo_filter can hot-swap to a smaller corpus
// without losing the full corpus underneath it.
type LexicalIndex struct {
	full     *BM25
	filtered *BM25

	texts  map[string]string // docID → source text, needed to rebuild the filtered corpus
	repoOf map[string]string // docID → repoName

	filteredRepos map[string]bool
}

// NewLexicalIndex creates an index with an empty full corpus and no active
// filtered subset (Search falls back to the full corpus until one is set).
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{
		full:   NewBM25(1.5, 0.75),
		texts:  make(map[string]string),
		repoOf: make(map[string]string),
	}
}

// AddDocument adds a document to the full corpus, and to the filtered corpus
// too if its repo is currently in the active subset.
func (li *LexicalIndex) AddDocument(id, repoName, text string) {
	li.full.AddDocument(id, text)
	li.texts[id] = text
	li.repoOf[id] = repoName
	if li.filtered != nil && li.filteredRepos[repoName] {
		li.filtered.AddDocument(id, text)
	}
}

// SetFilteredRepos rebuilds the filtered corpus from every already-added
// document belonging to one of repos. Called when repo_filter differs from
// the active filtered-tier set.
func (li *LexicalIndex) SetFilteredRepos(repos ...string) {
	set := make(map[string]bool, len(repos))
	for _, r := range repos {
		set[r] = true
	}
	li.filteredRepos = set
	li.filtered = NewBM25(1.5, 0.75)
	for id, text := range li.texts {
		if set[li.repoOf[id]] {
			li.filtered.AddDocument(id, text)
		}
	}
}

// ClearFilter drops the active filtered subset; Search falls back to the
// full corpus.
func (li *LexicalIndex) ClearFilter() {
	li.filtered = nil
	li.filteredRepos = nil
}

// Search queries the filtered corpus if one is active, else the full corpus.
// repoFilter is enforced as a safety net even against the filtered corpus,
// since a caller's filtered-tier set and its repoFilter argument aren't
// guaranteed to be the same set.
func (li *LexicalIndex) Search(query string, topK int, repoFilter ...string) []BM25Result {
	corpus := li.full
	if li.filtered != nil {
		corpus = li.filtered
	}

	filterSet := map[string]bool{}
	for _, r := range repoFilter {
		filterSet[r] = true
	}

	limit := topK
	if len(filterSet) > 0 {
		limit *= 5
	}
	results := corpus.Search(query, limit)

	if len(filterSet) == 0 {
		if topK < len(results) {
			results = results[:topK]
		}
		return results
	}

	kept := results[:0]
	for _, r := range results {
		if filterSet[li.repoOf[r.ID]] {
			kept = append(kept, r)
		}
	}
	if topK < len(kept) {
		kept = kept[:topK]
	}
	return kept
}

// FullDocCount returns the number of documents in the full corpus.
func (li *LexicalIndex) FullDocCount() int {
	return li.full.DocCount()
}

// FilteredDocCount returns the number of documents in the active filtered
// corpus, or 0 if no filter is active.
func (li *LexicalIndex) FilteredDocCount() int {
	if li.filtered == nil {
		return 0
	}
	return li.filtered.DocCount()
}
