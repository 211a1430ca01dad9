// gemini.go - Text cleanup through the Gemini API

package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiService = "gemini"

// GeminiCleaner implements TextCleaner with a Gemini model
type GeminiCleaner struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration // per attempt, 0 = none
	retry     RetryConfig
}

// NewGeminiCleaner creates a Gemini client for text cleanup
func NewGeminiCleaner(ctx context.Context, apiKey, modelName string, timeout time.Duration, opts ...option.ClientOption) (*GeminiCleaner, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiCleaner{
		client:    client,
		modelName: modelName,
		timeout:   timeout,
		retry:     DefaultRetryConfig,
	}, nil
}

// GetProviderName returns "gemini"
func (g *GeminiCleaner) GetProviderName() string {
	return geminiService
}

// Close releases the Gemini client
func (g *GeminiCleaner) Close() error {
	return g.client.Close()
}

// Clean asks the model to reformat rawText without changing its meaning
func (g *GeminiCleaner) Clean(ctx context.Context, rawText string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)
	model.SystemInstruction = genai.NewUserContent(genai.Text(CleanupSystemPrompt))

	resp, err := callWithRetry(ctx, reqCtx, g.retry, geminiService,
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			if g.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, g.timeout)
				defer cancel()
			}
			return model.GenerateContent(ctx, genai.Text(rawText))
		})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrCleanupFailed, err)
	}

	cleaned := strings.TrimSpace(responseText(resp))
	if cleaned == "" {
		return "", nil, fmt.Errorf("%w: empty response from Gemini API", ErrCleanupFailed)
	}

	var tokens common.TokenUsage
	if resp.UsageMetadata != nil {
		tokens = common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
	}
	reqCtx.LogInfo("🧹 Cleanup done: %d → %d chars, %d tokens ($%.6f)",
		len(rawText), len(cleaned), tokens.TotalTokens, tokens.CostUSD)

	return cleaned, &tokens, nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
