package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// debugCallCounter tracks the number of LLM calls for FASTCODE_DEBUG_PROMPT_DIR logging.
var debugCallCounter uint64

// tokenizer is shared across clients: cl100k_base is the encoding used by
// gpt-3.5-turbo and gpt-4, and is close enough for any OpenAI-compatible
// backend that doesn't publish its own tokenizer.
var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

func getTokenizer() *tiktoken.Tiktoken {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenizer = enc
		}
	})
	return tokenizer
}

// CountTokens returns the tiktoken-counted length of text under the
// cl100k_base encoding, falling back to a chars/4 estimate if the encoding
// couldn't be loaded (e.g. its ranks file isn't reachable offline).
func CountTokens(text string) int {
	if tok := getTokenizer(); tok != nil {
		return len(tok.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// Client is an OpenAI-compatible LLM API client.
type Client struct {
	APIKey           string
	Model            string
	BaseURL          string
	EmbeddingBaseURL string // Separate base URL for embeddings (optional)
	HTTP             *http.Client
}

// NewClient creates a new LLM client from environment variables.
func NewClient() *Client {
	baseURL := getEnvOr("BASE_URL", "https://api.openai.com/v1")
	return &Client{
		APIKey:           os.Getenv("OPENAI_API_KEY"),
		Model:            getEnvOr("MODEL", "gpt-4o"),
		BaseURL:          baseURL,
		EmbeddingBaseURL: getEnvOr("EMBEDDING_URL", baseURL),
		HTTP: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// NewClientWith creates a client with explicit parameters.
func NewClientWith(apiKey, model, baseURL string) *Client {
	return &Client{
		APIKey:           apiKey,
		Model:            model,
		BaseURL:          baseURL,
		EmbeddingBaseURL: baseURL,
		HTTP:             &http.Client{Timeout: 120 * time.Second},
	}
}

// --- Chat Completion ---

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatCompletion sends a chat completion request and returns the response text.
func (c *Client) ChatCompletion(messages []ChatMessage, temperature float64, maxTokens int) (string, error) {
	text, _, err := c.ChatCompletionWithUsage(messages, temperature, maxTokens)
	return text, err
}

// ChatCompletionWithUsage is ChatCompletion plus the token count actually
// spent on the round trip, so a caller tracking a token budget (the
// iterative agent's MaxTokenBudget) doesn't have to re-tokenize the prompt
// itself. It prefers the API's own usage.total_tokens when the backend
// reports one, and falls back to local tiktoken counting of the prompt and
// response text when it doesn't.
func (c *Client) ChatCompletionWithUsage(messages []ChatMessage, temperature float64, maxTokens int) (string, int, error) {
	req := chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	// --- Mode 1: Single-prompt abort (existing behaviour) ---
	if dumpFile := os.Getenv("FASTCODE_DEBUG_PROMPT_FILE"); dumpFile != "" {
		data, err := json.MarshalIndent(req, "", "  ")
		if err == nil {
			_ = os.WriteFile(dumpFile, data, 0644)
		}
		return "DEBUG_PROMPT_WRITTEN", 0, nil
	}

	// --- Mode 2: Full-flow logging (log every call, don't abort) ---
	dumpDir := os.Getenv("FASTCODE_DEBUG_PROMPT_DIR")
	var callNum uint64
	if dumpDir != "" {
		callNum = atomic.AddUint64(&debugCallCounter, 1)
		_ = os.MkdirAll(dumpDir, 0755)
		reqPath := filepath.Join(dumpDir, fmt.Sprintf("call_%03d_request.json", callNum))
		data, err := json.MarshalIndent(req, "", "  ")
		if err == nil {
			_ = os.WriteFile(reqPath, data, 0644)
		}
	}

	body, err := c.post("/chat/completions", req)
	if err != nil {
		return "", 0, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("parse chat response: %w", err)
	}
	if resp.Error != nil {
		return "", 0, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("no choices in response")
	}

	// Log response in full-flow mode
	if dumpDir != "" {
		respPath := filepath.Join(dumpDir, fmt.Sprintf("call_%03d_response.json", callNum))
		respData, err := json.MarshalIndent(resp, "", "  ")
		if err == nil {
			_ = os.WriteFile(respPath, respData, 0644)
		}
	}

	text := resp.Choices[0].Message.Content
	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		var promptText strings.Builder
		for _, m := range messages {
			promptText.WriteString(m.Content)
		}
		tokens = CountTokens(promptText.String()) + CountTokens(text)
	}
	return text, tokens, nil
}

// --- Embeddings ---

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates embedding vectors for the given texts.
func (c *Client) Embed(texts []string, model string) ([][]float32, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}

	req := embeddingRequest{
		Model: model,
		Input: texts,
	}

	var url string
	if strings.HasSuffix(c.EmbeddingBaseURL, "/embeddings") {
		url = c.EmbeddingBaseURL
	} else {
		url = strings.TrimSuffix(c.EmbeddingBaseURL, "/") + "/embeddings"
	}

	body, err := c.postTo(url, "", req)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API error: %s", resp.Error.Message)
	}

	// Sort by index to maintain order
	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(result) {
			result[d.Index] = d.Embedding
		}
	}

	return result, nil
}

// --- HTTP helper ---

func (c *Client) post(path string, payload any) ([]byte, error) {
	return c.postTo(c.BaseURL, path, payload)
}

func (c *Client) postTo(baseURL, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := baseURL + path
	req, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
