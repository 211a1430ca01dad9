package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/configs"
	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func newTestCleaner(t *testing.T, handler http.HandlerFunc) *AzureOpenAICleaner {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cleaner := NewAzureOpenAICleaner(server.URL, "aoai-key", "gpt-4o-mini", "2024-02-01", 5*time.Second)
	cleaner.retry = RetryConfig{MaxAttempts: 1}
	return cleaner
}

func TestAzureOpenAICleaner_Request(t *testing.T) {
	var received map[string]interface{}

	cleaner := newTestCleaner(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt-4o-mini/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-02-01" {
			t.Errorf("api-version = %q", got)
		}
		if got := r.Header.Get("api-key"); got != "aoai-key" {
			t.Errorf("api-key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hello World\n"}}],
			"usage":{"prompt_tokens":1000,"completion_tokens":500,"total_tokens":1500}}`))
	})

	cleaned, tokens, err := cleaner.Clean(context.Background(), "He llo\nWor ld", common.NewRequestContext(nil, "test"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleaned != "Hello World" {
		t.Errorf("cleaned = %q", cleaned)
	}
	if tokens.InputTokens != 1000 || tokens.OutputTokens != 500 || tokens.TotalTokens != 1500 {
		t.Errorf("tokens = %+v", tokens)
	}

	temperature, ok := received["temperature"]
	if !ok || temperature.(float64) != 0 {
		t.Errorf("temperature = %v (present %v), want explicit 0", temperature, ok)
	}
	messages := received["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	system := messages[0].(map[string]interface{})
	user := messages[1].(map[string]interface{})
	if system["role"] != "system" || system["content"] != CleanupSystemPrompt {
		t.Errorf("system message = %v", system)
	}
	if user["role"] != "user" || user["content"] != "He llo\nWor ld" {
		t.Errorf("user message = %v", user)
	}
}

func TestAzureOpenAICleaner_SameInputSameOutput(t *testing.T) {
	var (
		mu           sync.Mutex
		temperatures []interface{}
	)
	cleaner := newTestCleaner(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		temperatures = append(temperatures, body["temperature"])
		mu.Unlock()

		// Deterministic model: the answer depends only on the user message
		messages, _ := body["messages"].([]interface{})
		user, _ := messages[len(messages)-1].(map[string]interface{})
		content, _ := user["content"].(string)
		answer, _ := json.Marshal(strings.Join(strings.Fields(content), " "))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` + string(answer) + `}}]}`))
	})

	const raw = "Invoice   no.\n 4711  total 12.50"
	first, _, err := cleaner.Clean(context.Background(), raw, common.NewRequestContext(nil, "test"))
	if err != nil {
		t.Fatalf("first Clean: %v", err)
	}
	second, _, err := cleaner.Clean(context.Background(), raw, common.NewRequestContext(nil, "test"))
	if err != nil {
		t.Fatalf("second Clean: %v", err)
	}

	if first != second || first != "Invoice no. 4711 total 12.50" {
		t.Errorf("outputs differ: %q vs %q", first, second)
	}
	if len(temperatures) != 2 {
		t.Fatalf("requests = %d, want 2", len(temperatures))
	}
	for i, temp := range temperatures {
		if v, ok := temp.(float64); !ok || v != 0 {
			t.Errorf("request %d temperature = %v, want 0", i+1, temp)
		}
	}
}

func TestAzureOpenAICleaner_CostUsesConfiguredPrices(t *testing.T) {
	oldIn, oldOut := configs.CLEANUP_INPUT_PRICE_PER_MILLION, configs.CLEANUP_OUTPUT_PRICE_PER_MILLION
	configs.CLEANUP_INPUT_PRICE_PER_MILLION, configs.CLEANUP_OUTPUT_PRICE_PER_MILLION = 1, 2
	defer func() {
		configs.CLEANUP_INPUT_PRICE_PER_MILLION, configs.CLEANUP_OUTPUT_PRICE_PER_MILLION = oldIn, oldOut
	}()

	cleaner := newTestCleaner(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"x"}}],"usage":{"prompt_tokens":1000000,"completion_tokens":1000000}}`))
	})

	_, tokens, err := cleaner.Clean(context.Background(), "x", common.NewRequestContext(nil, "test"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if tokens.CostUSD != 3 {
		t.Errorf("cost = %v, want 3", tokens.CostUSD)
	}
}

func TestAzureOpenAICleaner_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"code":"InternalError","message":"boom"}}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"401","message":"Access denied"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`},
		{"invalid json", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaner := newTestCleaner(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			cleaned, tokens, err := cleaner.Clean(context.Background(), "text", common.NewRequestContext(nil, "test"))
			if !errors.Is(err, ErrCleanupFailed) {
				t.Fatalf("err = %v, want ErrCleanupFailed", err)
			}
			if cleaned != "" || tokens != nil {
				t.Errorf("expected no output on failure, got %q %+v", cleaned, tokens)
			}
		})
	}
}

func TestAzureOpenAICleaner_RetriesRateLimit(t *testing.T) {
	calls := 0
	cleaner := newTestCleaner(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	})
	cleaner.retry = RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiple: 2}

	cleaned, _, err := cleaner.Clean(context.Background(), "text", common.NewRequestContext(nil, "test"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleaned != "done" || calls != 2 {
		t.Errorf("cleaned = %q after %d calls", cleaned, calls)
	}
}

func TestGeminiResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("World")}},
		}},
	}
	if got := responseText(resp); got != "Hello World" {
		t.Errorf("responseText = %q", got)
	}

	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("empty response text = %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Errorf("nil response text = %q", got)
	}
}

func TestCreateTextCleaner(t *testing.T) {
	oldProvider := configs.CLEANUP_PROVIDER
	defer func() { configs.CLEANUP_PROVIDER = oldProvider }()

	configs.CLEANUP_PROVIDER = configs.CleanupProviderNone
	cleaner, err := CreateTextCleaner(context.Background())
	if err != nil || cleaner != nil {
		t.Errorf("none: cleaner = %v, err = %v", cleaner, err)
	}

	configs.CLEANUP_PROVIDER = configs.CleanupProviderAzureOpenAI
	cleaner, err = CreateTextCleaner(context.Background())
	if err != nil {
		t.Fatalf("azure-openai: %v", err)
	}
	if cleaner.GetProviderName() != "azure-openai" {
		t.Errorf("provider = %s", cleaner.GetProviderName())
	}

	oldKey, oldTimeout := configs.GEMINI_API_KEY, configs.CLEANUP_TIMEOUT
	defer func() { configs.GEMINI_API_KEY, configs.CLEANUP_TIMEOUT = oldKey, oldTimeout }()
	configs.CLEANUP_PROVIDER = configs.CleanupProviderGemini
	configs.GEMINI_API_KEY = "gemini-key"
	configs.CLEANUP_TIMEOUT = 7
	cleaner, err = CreateTextCleaner(context.Background())
	if err != nil {
		t.Fatalf("gemini: %v", err)
	}
	if gemini, ok := cleaner.(*GeminiCleaner); !ok || gemini.timeout != 7*time.Second {
		t.Errorf("gemini cleaner = %#v, want 7s attempt timeout", cleaner)
	}
	_ = cleaner.Close()

	configs.CLEANUP_PROVIDER = "mistral"
	if _, err := CreateTextCleaner(context.Background()); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("unknown provider err = %v", err)
	}
}

// redirectTransport sends every request to a local test server
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestGeminiCleaner(t *testing.T, timeout time.Duration, handler http.HandlerFunc) *GeminiCleaner {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	httpClient := &http.Client{Transport: redirectTransport{target: target}}

	cleaner, err := NewGeminiCleaner(context.Background(), "gemini-key", "gemini-2.5-flash", timeout, option.WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("NewGeminiCleaner: %v", err)
	}
	t.Cleanup(func() { _ = cleaner.Close() })
	cleaner.retry = RetryConfig{MaxAttempts: 1}
	return cleaner
}

func TestGeminiCleaner_Request(t *testing.T) {
	var received map[string]interface{}

	cleaner := newTestGeminiCleaner(t, 5*time.Second, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  Hello World\n"}]},"finishReason":1}],
			"usageMetadata":{"promptTokenCount":1000,"candidatesTokenCount":500,"totalTokenCount":1500}}`))
	})

	cleaned, tokens, err := cleaner.Clean(context.Background(), "He llo\nWor ld", common.NewRequestContext(nil, "test"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleaned != "Hello World" {
		t.Errorf("cleaned = %q", cleaned)
	}
	if tokens.InputTokens != 1000 || tokens.OutputTokens != 500 {
		t.Errorf("tokens = %+v", tokens)
	}

	config, _ := received["generationConfig"].(map[string]interface{})
	if temp, ok := config["temperature"].(float64); !ok || temp != 0 {
		t.Errorf("generationConfig = %v, want explicit temperature 0", received["generationConfig"])
	}
	if got := firstPartText(received["systemInstruction"]); got != CleanupSystemPrompt {
		t.Errorf("system instruction = %q", got)
	}
	contents, _ := received["contents"].([]interface{})
	if len(contents) != 1 || firstPartText(contents[0]) != "He llo\nWor ld" {
		t.Errorf("contents = %v", received["contents"])
	}
}

func TestGeminiCleaner_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no candidates", http.StatusOK, `{"candidates":[]}`},
		{"blank text", http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"   "}]},"finishReason":1}]}`},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaner := newTestGeminiCleaner(t, 5*time.Second, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			cleaned, tokens, err := cleaner.Clean(context.Background(), "text", common.NewRequestContext(nil, "test"))
			if !errors.Is(err, ErrCleanupFailed) {
				t.Fatalf("err = %v, want ErrCleanupFailed", err)
			}
			if cleaned != "" || tokens != nil {
				t.Errorf("expected no output on failure, got %q %+v", cleaned, tokens)
			}
		})
	}
}

func TestGeminiCleaner_AttemptTimeout(t *testing.T) {
	cleaner := newTestGeminiCleaner(t, 50*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	_, _, err := cleaner.Clean(context.Background(), "text", common.NewRequestContext(nil, "test"))
	if !errors.Is(err, ErrCleanupFailed) {
		t.Fatalf("err = %v, want ErrCleanupFailed", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Clean returned after %v, want the per-attempt timeout to cut it short", elapsed)
	}
}

func firstPartText(content interface{}) string {
	c, _ := content.(map[string]interface{})
	parts, _ := c["parts"].([]interface{})
	if len(parts) == 0 {
		return ""
	}
	part, _ := parts[0].(map[string]interface{})
	text, _ := part["text"].(string)
	return text
}

func TestCreateOCREngine(t *testing.T) {
	engine := CreateOCREngine(nil)
	if engine.GetProviderName() != "azure-read" {
		t.Errorf("provider = %s", engine.GetProviderName())
	}
	if engine.config.Interval <= 0 {
		t.Errorf("interval = %v", engine.config.Interval)
	}
}
