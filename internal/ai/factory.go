// factory.go - Provider factory for the OCR engine and text cleaner

package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/configs"
	"github.com/bosocmputer/ocr_text_extractor/internal/ratelimit"
)

// CreateOCREngine builds the Azure Read poller from configuration
func CreateOCREngine(limiter *ratelimit.RateLimiter) *JobPoller {
	client := NewAzureReadClient(
		configs.OCR_ENDPOINT,
		configs.OCR_API_KEY,
		configs.OCR_API_VERSION,
		time.Duration(configs.OCR_HTTP_TIMEOUT)*time.Second,
		limiter,
	)

	return NewJobPoller(client, PollerConfig{
		Interval:    time.Duration(configs.OCR_POLL_INTERVAL_MS) * time.Millisecond,
		MaxAttempts: configs.OCR_MAX_POLL_ATTEMPTS,
		Timeout:     time.Duration(configs.OCR_TIMEOUT) * time.Second,
		Retry:       DefaultRetryConfig,
	})
}

// CreateTextCleaner creates the configured cleanup provider.
// Returns nil, nil when cleanup is disabled.
func CreateTextCleaner(ctx context.Context) (TextCleaner, error) {
	timeout := time.Duration(configs.CLEANUP_TIMEOUT) * time.Second

	switch configs.CLEANUP_PROVIDER {
	case configs.CleanupProviderAzureOpenAI:
		return NewAzureOpenAICleaner(
			configs.AZURE_OPENAI_ENDPOINT,
			configs.AZURE_OPENAI_API_KEY,
			configs.AZURE_OPENAI_DEPLOYMENT,
			configs.AZURE_OPENAI_API_VERSION,
			timeout,
		), nil

	case configs.CleanupProviderGemini:
		cleaner, err := NewGeminiCleaner(ctx, configs.GEMINI_API_KEY, configs.GEMINI_MODEL_NAME, timeout)
		if err != nil {
			return nil, err
		}
		return cleaner, nil

	case configs.CleanupProviderNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported cleanup provider: %s (supported: %s, %s, %s)",
			configs.CLEANUP_PROVIDER, configs.CleanupProviderAzureOpenAI, configs.CleanupProviderGemini, configs.CleanupProviderNone)
	}
}
