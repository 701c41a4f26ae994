package types

// CodeElement represents a unified code element for indexing.
//
// ID is stable across reindexing: "repoName::relativePath::type::name::startLine"
// (name is omitted for file-level elements). See index.GenerateElementID.
type CodeElement struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"` // "file", "class", "function", "documentation"
	Name         string         `json:"name"`
	FilePath     string         `json:"file_path"`
	RelativePath string         `json:"relative_path"`
	Language     string         `json:"language"`
	StartLine    int            `json:"start_line"`
	EndLine      int            `json:"end_line"`
	Code         string         `json:"code"`
	Signature    string         `json:"signature,omitempty"`
	Docstring    string         `json:"docstring,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RepoName     string         `json:"repo_name,omitempty"`
	RepoURL      string         `json:"repo_url,omitempty"`

	// Granularity mirrors Type for file/class/function results returned to a
	// caller; kept distinct from Type because "documentation" elements report
	// granularity "file" (they are whole-file docs, not a fourth granularity).
	Granularity string `json:"granularity,omitempty"`

	// ScoreComponents preserves the individual contributions behind TotalScore
	// for auditability (spec invariant: their sum equals TotalScore).
	ScoreComponents *ScoreComponents `json:"score_components,omitempty"`
	TotalScore      float64          `json:"total_score,omitempty"`

	// Embedding is the dense vector computed for this element during indexing.
	// It is never serialized with the element record itself — persistence goes
	// through the vector index/store, not through CodeElement's own encoding.
	Embedding []float32 `json:"-"`
}

// ScoreComponents records each additive contribution to a hybrid retrieval score.
type ScoreComponents struct {
	Semantic  float64 `json:"semantic,omitempty"`
	Pseudo    float64 `json:"pseudo,omitempty"`
	Lexical   float64 `json:"lexical,omitempty"`
	Graph     float64 `json:"graph,omitempty"`
}

// Sum returns the total of all components.
func (s ScoreComponents) Sum() float64 {
	return s.Semantic + s.Pseudo + s.Lexical + s.Graph
}

// RepositoryOverview is the per-repository summary used for repo selection (C6).
// It lives in a separate store from CodeElement and is never returned as a
// code search result.
type RepositoryOverview struct {
	RepoName      string    `json:"repo_name"`
	Summary       string    `json:"summary"`        // free text, truncated to ~1KB
	StructureText string    `json:"structure_text"` // directory tree + file counts
	ReadmeExcerpt string    `json:"readme_excerpt,omitempty"`
	Embedding     []float32 `json:"-"`
}

// DialogueTurn is one prior question/answer pair supplied as context for a
// follow-up query (e.g. "where is the function I asked about earlier?").
type DialogueTurn struct {
	Question string `json:"question"`
	Summary  string `json:"summary"` // short summary of the answer, not the full text
}

// FunctionInfo holds extracted function/method metadata.
type FunctionInfo struct {
	Name       string   `json:"name"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Docstring  string   `json:"docstring,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
	ReturnType string   `json:"return_type,omitempty"`
	IsAsync    bool     `json:"is_async,omitempty"`
	IsMethod   bool     `json:"is_method,omitempty"`
	ClassName  string   `json:"class_name,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Complexity int      `json:"complexity,omitempty"`
	Receiver   string   `json:"receiver,omitempty"` // Go-specific: method receiver
	Calls      []string `json:"calls,omitempty"`    // function/method names called within this function
}

// ClassInfo holds extracted class/struct/interface metadata.
type ClassInfo struct {
	Name       string         `json:"name"`
	StartLine  int            `json:"start_line"`
	EndLine    int            `json:"end_line"`
	Docstring  string         `json:"docstring,omitempty"`
	Bases      []string       `json:"bases,omitempty"` // parent classes / embedded types
	Methods    []FunctionInfo `json:"methods,omitempty"`
	Decorators []string       `json:"decorators,omitempty"`
	Kind       string         `json:"kind,omitempty"` // "class", "struct", "interface"
}

// ImportInfo holds extracted import statement metadata.
type ImportInfo struct {
	Module string   `json:"module"`
	Names  []string `json:"names,omitempty"`
	IsFrom bool     `json:"is_from,omitempty"` // Python: from X import Y
	Line   int      `json:"line"`
	Level  int      `json:"level,omitempty"` // Python relative import level
	Alias  string   `json:"alias,omitempty"`
}

// FileParseResult is the result of parsing a single source file.
type FileParseResult struct {
	FilePath        string         `json:"file_path"`
	Language        string         `json:"language"`
	Classes         []ClassInfo    `json:"classes,omitempty"`
	Functions       []FunctionInfo `json:"functions,omitempty"`
	Imports         []ImportInfo   `json:"imports,omitempty"`
	ModuleDocstring string         `json:"module_docstring,omitempty"`
	TotalLines      int            `json:"total_lines"`
	CodeLines       int            `json:"code_lines"`
	CommentLines    int            `json:"comment_lines"`
}
