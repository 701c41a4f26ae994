package orchestrator

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/arjunkori/codelens/internal/agent"
	"github.com/arjunkori/codelens/internal/cache"
	"github.com/arjunkori/codelens/internal/graph"
	"github.com/arjunkori/codelens/internal/index"
	"github.com/arjunkori/codelens/internal/llm"
	"github.com/arjunkori/codelens/internal/loader"
	"github.com/arjunkori/codelens/internal/storage"
	"github.com/arjunkori/codelens/internal/types"
)

// Engine is the top-level orchestrator connecting all codelens modules.
type Engine struct {
	client    *llm.Client
	embedder  *llm.Embedder
	cache     *cache.IndexCache
	graphs    *graph.CodeGraphs
	lexical   *index.LexicalIndex
	hybrid    *index.HybridRetriever
	overviews *index.OverviewIndex
	store     *storage.Store
	elements  []types.CodeElement
	repoName  string
	repoPath  string // Absolute path to the repo root
	cacheDir  string
}

// Config holds engine configuration.
type Config struct {
	CacheDir       string
	EmbeddingModel string
	BatchSize      int
	NoEmbeddings   bool // If true, skip embedding generation (BM25 only)
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	embeddingModel := os.Getenv("EMBEDDING_MODEL")
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	return Config{
		CacheDir:       filepath.Join(home, ".codelens", "cache"),
		EmbeddingModel: embeddingModel,
		BatchSize:      32,
		NoEmbeddings:   false,
	}
}

// NewEngine creates a new codelens engine. It opens a Badger store under
// CacheDir/badger for the vector and repository-overview indexes — on-disk
// when CacheDir is set, in-memory otherwise — so repeated runs against the
// same cache directory don't have to rebuild either index from scratch.
func NewEngine(cfg Config) *Engine {
	client := llm.NewClient()
	var embedder *llm.Embedder
	if !cfg.NoEmbeddings && client.APIKey != "" {
		embedder = llm.NewEmbedder(client, cfg.EmbeddingModel, cfg.BatchSize)
	}

	storeDir := ""
	if cfg.CacheDir != "" {
		storeDir = filepath.Join(cfg.CacheDir, "badger")
	}
	store, err := storage.Open(storeDir)
	if err != nil {
		log.Printf("[engine] persistence unavailable, continuing without it: %v", err)
		store = nil
	}

	overviews := index.NewOverviewIndex()
	if store != nil {
		overviews.AttachPersistence(store)
		if err := overviews.LoadAll(); err != nil {
			log.Printf("[engine] overview index load failed: %v", err)
		}
	}

	return &Engine{
		client:    client,
		embedder:  embedder,
		cache:     cache.NewIndexCache(cfg.CacheDir),
		cacheDir:  cfg.CacheDir,
		store:     store,
		overviews: overviews,
	}
}

// Close releases the engine's persistent storage handle.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// IndexResult holds the result of an indexing operation.
type IndexResult struct {
	RepoName      string         `json:"repo_name"`
	TotalFiles    int            `json:"total_files"`
	TotalElements int            `json:"total_elements"`
	GraphStats    map[string]any `json:"graph_stats"`
	Cached        bool           `json:"cached"`
}

// Index parses, indexes, and optionally embeds a repository.
func (e *Engine) Index(repoPath string, forceReindex bool) (*IndexResult, error) {
	// Load repository
	loaderCfg := loader.DefaultConfig()
	repo, err := loader.LoadRepository(repoPath, loaderCfg)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	e.repoName = repo.Name
	e.repoPath, _ = filepath.Abs(repoPath)
	log.Printf("[engine] loaded %d files from %s", len(repo.Files), repo.Name)

	// Check cache
	if !forceReindex && e.cache.Exists(repo.Name) {
		cached, err := e.cache.Load(repo.Name)
		if err == nil {
			log.Printf("[engine] loaded %d elements from cache", len(cached.Elements))
			e.elements = cached.Elements
			e.rebuildFromCache(cached)
			return &IndexResult{
				RepoName:      repo.Name,
				TotalFiles:    len(repo.Files),
				TotalElements: len(e.elements),
				GraphStats:    e.graphs.Stats(),
				Cached:        true,
			}, nil
		}
		log.Printf("[engine] cache load failed, re-indexing: %v", err)
	}

	// Parse and index
	indexer := index.NewIndexer(repo.Name)
	elements, err := indexer.IndexRepository(repo)
	if err != nil {
		return nil, fmt.Errorf("index repository: %w", err)
	}
	e.elements = elements

	// Build graphs
	e.graphs = graph.NewCodeGraphs()
	e.graphs.BuildGraphs(elements)

	// Build hybrid search index. The lexical index's filtered tier is
	// immediately narrowed to the repo just indexed, so retrieval for this
	// engine instance always runs BM25 against the small filtered corpus
	// rather than every repo ever cached in the shared full corpus.
	vs := index.NewVectorStore()
	if e.store != nil {
		vs.AttachPersistence(e.store)
	}
	e.lexical = index.NewLexicalIndex()
	e.hybrid = index.NewHybridRetriever(vs, e.lexical)
	e.hybrid.AttachGraphs(e.graphs)

	err = e.hybrid.IndexElements(elements, e.embedder)
	if err != nil {
		log.Printf("[engine] embedding failed (BM25 only): %v", err)
	}
	e.lexical.SetFilteredRepos(repo.Name)

	if e.store != nil {
		if err := vs.Save(); err != nil {
			log.Printf("[engine] vector persistence save failed: %v", err)
		}
	}
	e.saveOverview(repo, elements)

	// Cache results
	cachedData := &cache.CachedIndex{
		RepoName: repo.Name,
		Elements: elements,
		Vectors:  make(map[string][]float32),
	}
	// Store vectors if available
	for _, elem := range elements {
		if vec := vs.Get(elem.ID); vec != nil {
			cachedData.Vectors[elem.ID] = vec
		}
	}
	if err := e.cache.Save(repo.Name, cachedData); err != nil {
		log.Printf("[engine] cache save failed: %v", err)
	}

	return &IndexResult{
		RepoName:      repo.Name,
		TotalFiles:    len(repo.Files),
		TotalElements: len(elements),
		GraphStats:    e.graphs.Stats(),
		Cached:        false,
	}, nil
}

// QueryResult holds the result of a query operation.
type QueryResult struct {
	Answer     string `json:"answer"`
	Confidence int    `json:"confidence"`
	Rounds     int    `json:"rounds"`
	StopReason string `json:"stop_reason"`
	Elements   int    `json:"elements_used"`
}

// Query performs a full query pipeline: search → agent → answer.
func (e *Engine) Query(question string) (*QueryResult, error) {
	if e.hybrid == nil || len(e.elements) == 0 {
		return nil, fmt.Errorf("no repository indexed — run 'codelens index <path>' first")
	}

	// Process query
	pq := agent.ProcessQuery(question)
	log.Printf("[engine] query type=%s complexity=%d keywords=%v", pq.QueryType, pq.Complexity, pq.Keywords)

	// If we have an API key, use the iterative agent
	if e.client.APIKey != "" {
		return e.queryWithAgent(question, pq)
	}

	// Fallback: direct search without LLM
	return e.queryDirect(question, pq)
}

func (e *Engine) queryWithAgent(question string, pq *agent.ProcessedQuery) (*QueryResult, error) {
	// Set up agent
	toolExec := agent.NewToolExecutor(e.hybrid, e.embedder, e.elements)
	toolExec.SetRepoRoot(e.repoPath, e.repoName)
	agentCfg := agent.DefaultAgentConfig()
	iterAgent := agent.NewIterativeAgent(e.client, toolExec, e.graphs, agentCfg)

	// Run retrieval
	retrieval, err := iterAgent.Retrieve(question, pq)
	if err != nil {
		return nil, fmt.Errorf("agent retrieval: %w", err)
	}

	// Generate answer
	gen := agent.NewAnswerGenerator(e.client)
	answer, err := gen.GenerateAnswer(question, pq, retrieval.Elements)
	if err != nil {
		return nil, fmt.Errorf("answer generation: %w", err)
	}

	return &QueryResult{
		Answer:     answer,
		Confidence: retrieval.Confidence,
		Rounds:     retrieval.Rounds,
		StopReason: retrieval.StopReason,
		Elements:   len(retrieval.Elements),
	}, nil
}

func (e *Engine) queryDirect(question string, pq *agent.ProcessedQuery) (*QueryResult, error) {
	// Direct hybrid search without LLM agent
	var queryVec []float32
	if e.embedder != nil {
		vec, err := e.embedder.EmbedText(question)
		if err == nil {
			queryVec = vec
		}
	}

	results := e.hybrid.Search(question, queryVec, 10, e.repoName)
	var sb fmt.Stringer = &simpleAnswer{}
	answer := &simpleAnswer{}
	for _, r := range results {
		if r.Element != nil {
			answer.addResult(r.Element)
		}
	}
	_ = sb // suppress unused

	return &QueryResult{
		Answer:     answer.String(),
		Confidence: 50,
		Rounds:     1,
		StopReason: "direct_search",
		Elements:   len(results),
	}, nil
}

func (e *Engine) rebuildFromCache(cached *cache.CachedIndex) {
	e.graphs = graph.NewCodeGraphs()
	e.graphs.BuildGraphs(cached.Elements)

	vs := index.NewVectorStore()
	if e.store != nil {
		vs.AttachPersistence(e.store)
	}
	for id, vec := range cached.Vectors {
		vs.Add(id, cached.RepoName, vec)
	}
	e.lexical = index.NewLexicalIndex()
	e.hybrid = index.NewHybridRetriever(vs, e.lexical)
	e.hybrid.AttachGraphs(e.graphs)
	_ = e.hybrid.IndexElements(cached.Elements, nil)
	e.lexical.SetFilteredRepos(cached.RepoName)
}

// saveOverview builds and persists the indexed repo's RepositoryOverview —
// a short summary plus a shallow directory listing — so a later multi-repo
// selection pass (SelectRelevantRepos) can narrow candidates before running
// full retrieval against any one of them.
func (e *Engine) saveOverview(repo *loader.Repository, elements []types.CodeElement) {
	dirSet := make(map[string]bool)
	for _, f := range repo.Files {
		dirSet[filepath.Dir(f.RelativePath)] = true
	}
	var structure strings.Builder
	for dir := range dirSet {
		if dir == "." {
			continue
		}
		structure.WriteString(dir)
		structure.WriteString("\n")
	}
	summary := fmt.Sprintf("%s: %d files, %d indexed elements", repo.Name, len(repo.Files), len(elements))

	var embedding []float32
	if e.embedder != nil {
		if vec, err := e.embedder.EmbedText(summary + " " + structure.String()); err == nil {
			embedding = vec
		}
	}
	if err := e.overviews.Save(repo.Name, summary, structure.String(), embedding, ""); err != nil {
		log.Printf("[engine] overview save failed: %v", err)
	}
}

// SelectRelevantRepos ranks every repository with a saved overview against
// question, for callers that keep more than one repo indexed in the same
// cache directory and need to narrow the scope before running full
// retrieval against any single one of them.
func (e *Engine) SelectRelevantRepos(question string, topK int) []string {
	if e.overviews == nil || e.overviews.Count() == 0 {
		return nil
	}
	var qvec []float32
	if e.embedder != nil {
		if vec, err := e.embedder.EmbedText(question); err == nil {
			qvec = vec
		}
	}
	results := e.overviews.SearchOverviews(qvec, question, topK, 0.15)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.RepoName)
	}
	return names
}

// Tools returns a ToolExecutor bound to the currently indexed repository, so
// an external caller (the MCP server's list_directory/search_codebase/
// get_file_structure_summary/read_file_content tools) can drive the same
// sandboxed access the iterative agent uses internally.
func (e *Engine) Tools() (*agent.ToolExecutor, error) {
	if e.hybrid == nil || len(e.elements) == 0 {
		return nil, fmt.Errorf("no repository indexed — run 'codelens index <path>' first")
	}
	toolExec := agent.NewToolExecutor(e.hybrid, e.embedder, e.elements)
	toolExec.SetRepoRoot(e.repoPath, e.repoName)
	return toolExec, nil
}

// simpleAnswer builds a text answer from search results without LLM.
type simpleAnswer struct {
	lines []string
}

func (sa *simpleAnswer) addResult(elem *types.CodeElement) {
	sa.lines = append(sa.lines, fmt.Sprintf("[%s] %s (%s:L%d-%d)\n  %s",
		elem.Type, elem.Name, elem.RelativePath, elem.StartLine, elem.EndLine, elem.Signature))
}

func (sa *simpleAnswer) String() string {
	if len(sa.lines) == 0 {
		return "No matching code elements found."
	}
	result := "Found matching code elements:\n\n"
	for _, l := range sa.lines {
		result += l + "\n\n"
	}
	return result
}
