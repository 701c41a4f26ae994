package agent

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/arjunkori/codelens/internal/index"
	"github.com/arjunkori/codelens/internal/llm"
	"github.com/arjunkori/codelens/internal/resolver"
	"github.com/arjunkori/codelens/internal/types"
	"github.com/arjunkori/codelens/internal/util"
)

// Tool describes one agent-callable action.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolResult holds the structured outcome of a tool execution. Success and
// Error mirror the agent-tool surface's "structured map with a boolean
// success and an error string on failure" contract.
type ToolResult struct {
	ToolName string              `json:"tool_name"`
	Success  bool                `json:"success"`
	Error    string              `json:"error,omitempty"`
	Elements []types.CodeElement `json:"elements,omitempty"`
	Text     string              `json:"text,omitempty"`
}

// ContentMatch is one content hit inside a file found by search_codebase.
type ContentMatch struct {
	Line    int    `json:"line"`
	Preview string `json:"preview"`
}

// FileCandidate is a file surfaced by search_codebase or list_directory,
// carrying enough match metadata for the agent to decide whether to pull its
// elements into the gathered set.
type FileCandidate struct {
	FilePath      string         `json:"file_path"`
	RepoName      string         `json:"repo_name"`
	IsDir         bool           `json:"is_dir"`
	FilenameMatch bool           `json:"filename_match"`
	Matches       []ContentMatch `json:"matches,omitempty"`
}

// AvailableTools returns the exact C9 tool surface.
func AvailableTools() []Tool {
	return []Tool{
		{Name: "list_directory", Description: "List entries (files and subdirectories) under a path in the repository"},
		{Name: "search_codebase", Description: "Search file contents for a literal term or regex pattern, optionally scoped by a glob file pattern"},
		{Name: "get_file_structure_summary", Description: "Extract classes, functions, and imports from the first lines of a file without reading it in full"},
		{Name: "read_file_content", Description: "Read a file's content, truncated to a character budget"},
	}
}

// searchDenylist is the fixed set of directories search_codebase and
// list_directory never descend into, beyond anything already hidden
// (dot-prefixed).
var searchDenylist = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"venv":         true,
}

// ToolExecutor executes agent tools against an indexed repository, with all
// filesystem access sandboxed through a resolver.Resolver rooted at repoRoot.
type ToolExecutor struct {
	hybrid   *index.HybridRetriever
	embedder *llm.Embedder
	elements map[string]*types.CodeElement
	repoRoot string
	repoName string
	res      *resolver.Resolver
}

// NewToolExecutor creates a new tool executor.
func NewToolExecutor(hybrid *index.HybridRetriever, embedder *llm.Embedder, elements []types.CodeElement) *ToolExecutor {
	elemMap := make(map[string]*types.CodeElement, len(elements))
	for i := range elements {
		elemMap[elements[i].ID] = &elements[i]
	}
	return &ToolExecutor{
		hybrid:   hybrid,
		embedder: embedder,
		elements: elemMap,
	}
}

// SetRepoRoot binds the repository root for filesystem tools and builds the
// sandboxing resolver for it.
func (te *ToolExecutor) SetRepoRoot(repoRoot, repoName string) {
	te.repoRoot = repoRoot
	te.repoName = repoName
	te.res = resolver.New(repoRoot)
}

// Execute runs a tool by name against a generic parameter map, used by the
// MCP surface and by any round that wants a uniform structured result.
func (te *ToolExecutor) Execute(toolName string, params map[string]any) (*ToolResult, error) {
	switch toolName {
	case "search_codebase":
		opts := SearchCodebaseOptions{
			SearchTerm:  stringParam(params, "search_term", ""),
			FilePattern: stringParam(params, "file_pattern", "*"),
			RootPath:    stringParam(params, "root_path", "."),
			MaxResults:  intParam(params, "max_results", 30),
			CaseSensitive: boolParam(params, "case_sensitive", false),
			UseRegex:      boolParam(params, "use_regex", false),
		}
		candidates := te.ExecuteSearchCodebase(opts)
		var elements []types.CodeElement
		for _, c := range candidates {
			elements = append(elements, te.FindElementsForFile(c.FilePath)...)
		}
		return &ToolResult{ToolName: toolName, Success: true, Elements: elements}, nil
	case "list_directory":
		opts := ListDirectoryOptions{
			Path:          stringParam(params, "path", "."),
			IncludeHidden: boolParam(params, "include_hidden", false),
		}
		candidates := te.ExecuteListDirectory(opts)
		var elements []types.CodeElement
		for _, c := range candidates {
			if c.IsDir {
				continue
			}
			elements = append(elements, te.FindElementsForFile(c.FilePath)...)
		}
		return &ToolResult{ToolName: toolName, Success: true, Elements: elements}, nil
	case "get_file_structure_summary":
		return te.GetFileStructureSummary(stringParam(params, "path", ""), intParam(params, "max_lines", 100)), nil
	case "read_file_content":
		return te.ReadFileContent(stringParam(params, "path", ""), intParam(params, "max_chars", 0)), nil
	default:
		return &ToolResult{ToolName: toolName, Success: false, Error: fmt.Sprintf("unknown tool: %s", toolName)}, nil
	}
}

func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		}
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	if v, ok := params[key]; ok {
		switch t := v.(type) {
		case int:
			return t
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n
			}
		}
	}
	return def
}

func boolParam(params map[string]any, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}

// SearchCodebaseOptions carries search_codebase's full parameter set.
type SearchCodebaseOptions struct {
	SearchTerm    string
	FilePattern   string // default "*"
	RootPath      string // default "."
	MaxResults    int    // default 30
	CaseSensitive bool
	UseRegex bool
}

// regexMetaPattern matches the characters whose presence, unescaped, makes a
// search_term look like a regex even when the caller didn't set use_regex.
var regexMetaPattern = regexp.MustCompile(`(?:[^\\]|^)[.^$+(){}\[\]]`)

// looksLikeRegex auto-detects regex intent in a literal-mode search term.
func looksLikeRegex(term string) bool {
	return regexMetaPattern.MatchString(term)
}

// buildContentPattern compiles search_term into the regex actually used to
// scan file contents, applying auto-regex detection and pipe-as-OR handling
// in literal mode.
func buildContentPattern(term string, useRegex, caseSensitive bool) (*regexp.Regexp, error) {
	flags := "(?i)"
	if caseSensitive {
		flags = ""
	}

	effectiveRegex := useRegex || looksLikeRegex(term)
	if effectiveRegex {
		return regexp.Compile(flags + term)
	}

	if strings.Contains(term, "|") {
		parts := strings.Split(term, "|")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		return regexp.Compile(flags + "(?:" + strings.Join(parts, "|") + ")")
	}

	return regexp.Compile(flags + regexp.QuoteMeta(term))
}

// compileGlob turns a **-aware glob into a regexp anchored at both ends.
// "**" matches any sequence including "/"; a bare "*" never crosses "/".
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// retryWithDoubleStar inserts "/**/" before the final path segment, used to
// auto-retry a zero-result search whose pattern has a "/" but no "**".
func retryWithDoubleStar(pattern string) (string, bool) {
	if strings.Contains(pattern, "**") || !strings.Contains(pattern, "/") {
		return pattern, false
	}
	idx := strings.LastIndex(pattern, "/")
	dir, filePart := pattern[:idx], pattern[idx+1:]
	return dir + "/**/" + filePart, true
}

// ExecuteSearchCodebase walks the repo rooted at root_path, skipping hidden
// and denylisted directories, matching filePattern against paths relative to
// root_path, and collecting up to max_results files with content matches.
func (te *ToolExecutor) ExecuteSearchCodebase(opts SearchCodebaseOptions) []FileCandidate {
	if te.res == nil || opts.SearchTerm == "" {
		return nil
	}
	if opts.FilePattern == "" {
		opts.FilePattern = "*"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 30
	}
	if opts.RootPath == "" {
		opts.RootPath = "."
	}

	contentPattern, err := buildContentPattern(opts.SearchTerm, opts.UseRegex, opts.CaseSensitive)
	if err != nil {
		log.Printf("[tools] search_codebase: invalid pattern %q: %v", opts.SearchTerm, err)
		return nil
	}

	candidates := te.walkSearch(opts.RootPath, opts.FilePattern, contentPattern, opts.MaxResults)
	if len(candidates) == 0 {
		if retried, ok := retryWithDoubleStar(opts.FilePattern); ok {
			candidates = te.walkSearch(opts.RootPath, retried, contentPattern, opts.MaxResults)
		}
	}
	return candidates
}

func (te *ToolExecutor) walkSearch(rootPath, filePattern string, contentPattern *regexp.Regexp, maxResults int) []FileCandidate {
	searchRoot, ok := te.res.Resolve(rootPath)
	if !ok {
		return nil
	}

	globRE, err := compileGlob(filePattern)
	if err != nil {
		return nil
	}
	hasSlash := strings.Contains(filePattern, "/")

	var candidates []FileCandidate
	_ = filepath.WalkDir(searchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != searchRoot && (strings.HasPrefix(name, ".") || searchDenylist[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		relToSearchRoot, _ := filepath.Rel(searchRoot, path)
		relToSearchRoot = filepath.ToSlash(relToSearchRoot)

		matched := false
		if hasSlash {
			matched = globRE.MatchString(relToSearchRoot)
		} else {
			matched = globRE.MatchString(d.Name())
		}
		if !matched {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := string(data)

		var matches []ContentMatch
		for i, line := range strings.Split(content, "\n") {
			if len(matches) >= 20 {
				break
			}
			if contentPattern.MatchString(line) {
				preview := line
				if len(preview) > 200 {
					preview = preview[:200]
				}
				matches = append(matches, ContentMatch{Line: i + 1, Preview: preview})
			}
		}

		filenameMatch := contentPattern.MatchString(d.Name())
		if len(matches) == 0 && !filenameMatch {
			return nil
		}

		relToRepoRoot, _ := filepath.Rel(te.repoRoot, path)
		candidates = append(candidates, FileCandidate{
			FilePath:      filepath.ToSlash(relToRepoRoot),
			RepoName:      te.repoName,
			FilenameMatch: filenameMatch,
			Matches:       matches,
		})

		if len(candidates) >= maxResults {
			return filepath.SkipAll
		}
		return nil
	})

	return candidates
}

// ListDirectoryOptions carries list_directory's parameter set.
type ListDirectoryOptions struct {
	Path          string
	IncludeHidden bool
}

// ExecuteListDirectory lists one directory's immediate entries, sandboxed
// through the resolver.
func (te *ToolExecutor) ExecuteListDirectory(opts ListDirectoryOptions) []FileCandidate {
	if te.res == nil {
		return nil
	}

	targetDir, ok := te.res.Resolve(opts.Path)
	if !ok {
		return nil
	}

	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return nil
	}

	var candidates []FileCandidate
	for _, entry := range entries {
		if !opts.IncludeHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() && searchDenylist[entry.Name()] {
			continue
		}
		relPath, _ := filepath.Rel(te.repoRoot, filepath.Join(targetDir, entry.Name()))
		candidates = append(candidates, FileCandidate{
			FilePath: filepath.ToSlash(relPath),
			RepoName: te.repoName,
			IsDir:    entry.IsDir(),
		})
	}

	return candidates
}

// structureClassPatterns, structureFuncPatterns and structureImportPatterns extract classes,
// functions (sync and async), and imports from a handful of languages via
// plain pattern matching — not a parse, just enough to brief the agent
// before it decides whether to read the file in full.
var (
	structureClassPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:public\s+|private\s+)?class\s+(\w+)`),
		regexp.MustCompile(`^\s*type\s+(\w+)\s+struct\b`),
		regexp.MustCompile(`^\s*interface\s+(\w+)`),
	}
	structureFuncPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)\s*\(`),
		regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s+(\w+)\s*\(`),
		regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+)?(?:async\s+)?[\w<>\[\],\s]+?\s(\w+)\s*\([^)]*\)\s*\{`),
	}
	structureImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+.+`),
		regexp.MustCompile(`^\s*from\s+\S+\s+import\s+.+`),
		regexp.MustCompile(`^\s*require\(['"].+['"]\)`),
	}
)

// GetFileStructureSummary extracts classes, functions, and imports from the
// first maxLines lines of path without parsing the whole file.
func (te *ToolExecutor) GetFileStructureSummary(path string, maxLines int) *ToolResult {
	if maxLines <= 0 {
		maxLines = 100
	}
	abs, ok := te.resolveExisting(path)
	if !ok {
		return &ToolResult{ToolName: "get_file_structure_summary", Success: false, Error: fmt.Sprintf("not found or outside repo: %s", path)}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return &ToolResult{ToolName: "get_file_structure_summary", Success: false, Error: err.Error()}
	}

	total := util.CountLines(string(data))
	lastLine := maxLines
	if total < lastLine {
		lastLine = total
	}
	head := util.ExtractLines(string(data), 1, lastLine)
	lines := strings.Split(head, "\n")

	var classes, functions, imports []string
	for _, line := range lines {
		for _, re := range structureClassPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				classes = append(classes, m[1])
			}
		}
		for _, re := range structureFuncPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				functions = append(functions, m[1])
			}
		}
		for _, re := range structureImportPatterns {
			if re.MatchString(line) {
				imports = append(imports, strings.TrimSpace(line))
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "classes: %s\n", strings.Join(classes, ", "))
	fmt.Fprintf(&sb, "functions: %s\n", strings.Join(functions, ", "))
	fmt.Fprintf(&sb, "imports:\n")
	for _, imp := range imports {
		fmt.Fprintf(&sb, "  %s\n", imp)
	}

	return &ToolResult{ToolName: "get_file_structure_summary", Success: true, Text: sb.String()}
}

// ReadFileContent reads path, truncated to maxChars if positive. The
// truncation flag is carried in Text's trailing marker so callers that only
// look at Text still see it.
func (te *ToolExecutor) ReadFileContent(path string, maxChars int) *ToolResult {
	abs, ok := te.resolveExisting(path)
	if !ok {
		return &ToolResult{ToolName: "read_file_content", Success: false, Error: fmt.Sprintf("not found or outside repo: %s", path)}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return &ToolResult{ToolName: "read_file_content", Success: false, Error: err.Error()}
	}

	content := string(data)
	truncated := false
	if maxChars > 0 && len(content) > maxChars {
		content = content[:maxChars]
		truncated = true
	}

	text := content
	if truncated {
		text += "\n...[truncated]"
	}
	return &ToolResult{ToolName: "read_file_content", Success: true, Text: text}
}

// resolveExisting resolves p through the sandbox and confirms it names a
// regular file that exists.
func (te *ToolExecutor) resolveExisting(p string) (string, bool) {
	if te.res == nil {
		return "", false
	}
	abs, ok := te.res.Resolve(p)
	if !ok {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	return abs, true
}

// FindElementsForFile retrieves all indexed elements for a given file path,
// matching either exactly or by path suffix (agent-supplied paths may be
// repo-relative in either direction).
func (te *ToolExecutor) FindElementsForFile(filePath string) []types.CodeElement {
	var result []types.CodeElement
	for _, elem := range te.elements {
		if elem.RelativePath == filePath ||
			strings.HasSuffix(elem.RelativePath, filePath) ||
			strings.HasSuffix(filePath, elem.RelativePath) {
			result = append(result, *elem)
		}
	}
	return result
}

// GetElement looks up a single element by ID.
func (te *ToolExecutor) GetElement(id string) (*types.CodeElement, bool) {
	elem, ok := te.elements[id]
	return elem, ok
}

// RepoProfile summarizes a bound repository's scale — file count, average
// file length, and directory depth — used to derive the iterative agent's
// repo-complexity factor.
type RepoProfile struct {
	FileCount    int
	AvgFileLines float64
	MaxDepth     int
}

// Profile characterizes the bound repository from its already-indexed
// elements, without touching the filesystem again.
func (te *ToolExecutor) Profile() RepoProfile {
	seen := make(map[string]bool)
	var totalLines, fileCount, maxDepth int
	for _, elem := range te.elements {
		if elem.Type != "file" || seen[elem.RelativePath] {
			continue
		}
		seen[elem.RelativePath] = true
		fileCount++
		lines := elem.EndLine - elem.StartLine + 1
		if lines <= 0 {
			lines = util.CountLines(elem.Code)
		}
		totalLines += lines
		if depth := strings.Count(filepath.ToSlash(elem.RelativePath), "/"); depth > maxDepth {
			maxDepth = depth
		}
	}
	avg := 0.0
	if fileCount > 0 {
		avg = float64(totalLines) / float64(fileCount)
	}
	return RepoProfile{FileCount: fileCount, AvgFileLines: avg, MaxDepth: maxDepth}
}

// ComplexityFactor maps a RepoProfile onto the [0.5, 2.0] scaling factor the
// iterative agent blends with query complexity when sizing its rounds,
// threshold, and line budget.
func (p RepoProfile) ComplexityFactor() float64 {
	score := 0.0
	switch {
	case p.FileCount > 500:
		score += 0.7
	case p.FileCount > 100:
		score += 0.4
	case p.FileCount > 20:
		score += 0.2
	}
	switch {
	case p.AvgFileLines > 300:
		score += 0.5
	case p.AvgFileLines > 150:
		score += 0.3
	case p.AvgFileLines > 50:
		score += 0.1
	}
	switch {
	case p.MaxDepth > 6:
		score += 0.4
	case p.MaxDepth > 3:
		score += 0.2
	}
	factor := 0.5 + score
	if factor < 0.5 {
		factor = 0.5
	}
	if factor > 2.0 {
		factor = 2.0
	}
	return factor
}

// DirectoryTree renders an indented listing of the repo root, skipping
// hidden and denylisted directories, for the agent's round-1 prompt — it
// hasn't read any file content yet, only this shape.
func (te *ToolExecutor) DirectoryTree(maxDepth int) string {
	if te.res == nil {
		return "(repository root not bound)"
	}
	var sb strings.Builder
	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if depth > maxDepth {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") || searchDenylist[e.Name()] {
				continue
			}
			sb.WriteString(strings.Repeat("  ", depth))
			if e.IsDir() {
				sb.WriteString(e.Name() + "/\n")
				walk(filepath.Join(dir, e.Name()), depth+1)
			} else {
				sb.WriteString(e.Name() + "\n")
			}
		}
	}
	walk(te.repoRoot, 0)
	if sb.Len() == 0 {
		return "(empty)"
	}
	return sb.String()
}

// searchCode runs the standard hybrid retrieval path used as Round 1's
// baseline search, independent of any agent tool calls.
func (te *ToolExecutor) searchCode(query string) (*ToolResult, error) {
	var queryVec []float32
	if te.embedder != nil {
		vec, err := te.embedder.EmbedText(query)
		if err == nil {
			queryVec = vec
		}
	}

	results := te.hybrid.Search(query, queryVec, 10, te.repoName)
	var elements []types.CodeElement
	for _, r := range results {
		if r.Element != nil {
			elements = append(elements, *r.Element)
		}
	}

	return &ToolResult{
		ToolName: "search_codebase",
		Success:  true,
		Elements: elements,
	}, nil
}

// searchCodeFiltered is searchCode narrowed to a single language, for a
// query whose phrasing already names the language it's asking about (see
// inferFilters in query.go) — cuts down cross-language noise without the
// caller having to re-rank afterward.
func (te *ToolExecutor) searchCodeFiltered(query, language string) (*ToolResult, error) {
	var queryVec []float32
	if te.embedder != nil {
		vec, err := te.embedder.EmbedText(query)
		if err == nil {
			queryVec = vec
		}
	}

	var repoFilter []string
	if te.repoName != "" {
		repoFilter = []string{te.repoName}
	}
	results := te.hybrid.Retrieve(index.RetrieveRequest{
		Query:      query,
		QueryVec:   queryVec,
		Filters:    index.Filters{Language: language},
		RepoFilter: repoFilter,
		MaxResults: 10,
	})
	var elements []types.CodeElement
	for _, r := range results {
		if r.Element != nil {
			elements = append(elements, *r.Element)
		}
	}

	return &ToolResult{
		ToolName: "search_codebase",
		Success:  true,
		Elements: elements,
	}, nil
}
