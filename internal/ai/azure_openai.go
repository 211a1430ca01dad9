// azure_openai.go - Text cleanup through an Azure OpenAI chat deployment

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
)

const azureOpenAIService = "azure-openai"

// AzureOpenAICleaner implements TextCleaner using the chat completions API
type AzureOpenAICleaner struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	client     *http.Client
	retry      RetryConfig
}

// NewAzureOpenAICleaner creates a new Azure OpenAI cleaner
func NewAzureOpenAICleaner(endpoint, apiKey, deployment, apiVersion string, timeout time.Duration) *AzureOpenAICleaner {
	return &AzureOpenAICleaner{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		deployment: deployment,
		apiVersion: apiVersion,
		client: &http.Client{
			Timeout: timeout,
		},
		retry: DefaultRetryConfig,
	}
}

// GetProviderName returns "azure-openai"
func (a *AzureOpenAICleaner) GetProviderName() string {
	return azureOpenAIService
}

// Close is a no-op; the HTTP client holds no dedicated resources
func (a *AzureOpenAICleaner) Close() error {
	return nil
}

// Chat completions request/response structures
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Clean sends rawText to the deployment with a zero temperature
func (a *AzureOpenAICleaner) Clean(ctx context.Context, rawText string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	request := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: CleanupSystemPrompt},
			{Role: "user", Content: rawText},
		},
		Temperature: 0,
	}

	response, err := callWithRetry(ctx, reqCtx, a.retry, azureOpenAIService,
		func(ctx context.Context) (*chatResponse, error) {
			return a.callChatAPI(ctx, request)
		})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrCleanupFailed, err)
	}

	if len(response.Choices) == 0 {
		return "", nil, fmt.Errorf("%w: no choices in response", ErrCleanupFailed)
	}
	cleaned := strings.TrimSpace(response.Choices[0].Message.Content)
	if cleaned == "" {
		return "", nil, fmt.Errorf("%w: empty response content", ErrCleanupFailed)
	}

	tokens := common.CalculateTokenCost(response.Usage.PromptTokens, response.Usage.CompletionTokens)
	reqCtx.LogInfo("🧹 Cleanup done: %d → %d chars, %d tokens ($%.6f)",
		len(rawText), len(cleaned), tokens.TotalTokens, tokens.CostUSD)

	return cleaned, &tokens, nil
}

// callChatAPI performs a single chat completions request
func (a *AzureOpenAICleaner) callChatAPI(ctx context.Context, request chatRequest) (*chatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, url.PathEscape(a.deployment), url.QueryEscape(a.apiVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(azureOpenAIService, resp, body)
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}

	return &response, nil
}
