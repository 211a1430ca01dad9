// retry.go - Retry logic and error handling for upstream API calls

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"google.golang.org/api/googleapi"
)

// Failure classes surfaced to the orchestrator
var (
	ErrOCRSubmission = errors.New("ocr submission failed")
	ErrOCRJobFailed  = errors.New("ocr job failed")
	ErrOCRTimeout    = errors.New("ocr polling timed out")
	ErrCleanupFailed = errors.New("text cleanup failed")
)

// RetryConfig defines retry behavior for upstream API calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults for retry behavior
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

// UpstreamError represents a categorized error from the OCR or LLM service
type UpstreamError struct {
	Service       string
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
	RetryAfter    time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s [%s] %s (status: %d, retryable: %v)", e.Service, e.Category, e.Message, e.StatusCode, e.Retryable)
}

func (e *UpstreamError) Unwrap() error {
	return e.OriginalError
}

// azureErrorResponse is the error body shape shared by Cognitive Services and Azure OpenAI
type azureErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// categorizeStatus maps an HTTP status code to a category and retry decision
func categorizeStatus(code int) (category, message string, retryable bool) {
	switch code {
	case 400:
		return "bad_request", "Invalid request format or unsupported document", false
	case 401:
		return "unauthorized", "Invalid API key or authentication failed", false
	case 403:
		return "forbidden", "API key lacks required permissions", false
	case 404:
		return "not_found", "Resource, deployment or operation not found", false
	case 413:
		return "payload_too_large", "Request size exceeds limit", false
	case 415:
		return "unsupported_media_type", "Unsupported media type", false
	case 429:
		return "rate_limit", "Rate limit exceeded - too many requests", true
	case 500, 502, 503, 504:
		return "server_error", fmt.Sprintf("Upstream server error (%d)", code), true
	default:
		return "unknown_api_error", fmt.Sprintf("Unexpected status %d", code), code >= 500
	}
}

// newHTTPError builds an UpstreamError from a non-success HTTP response
func newHTTPError(service string, resp *http.Response, body []byte) *UpstreamError {
	category, message, retryable := categorizeStatus(resp.StatusCode)

	detail := strings.TrimSpace(string(body))
	var errorResp azureErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		detail = errorResp.Error.Message
		if errorResp.Error.Code != "" {
			detail = errorResp.Error.Code + ": " + detail
		}
	}
	if detail != "" {
		message = message + ": " + detail
	}

	upErr := &UpstreamError{
		Service:       service,
		OriginalError: fmt.Errorf("%s returned status %d", service, resp.StatusCode),
		Category:      category,
		StatusCode:    resp.StatusCode,
		Message:       message,
		Retryable:     retryable,
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			upErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return upErr
}

// categorizeError analyzes a transport or SDK error and determines retry strategy
func categorizeError(service string, err error) *UpstreamError {
	if err == nil {
		return nil
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr
	}

	upErr = &UpstreamError{
		Service:       service,
		OriginalError: err,
		Category:      "unknown",
		Message:       err.Error(),
		Retryable:     false,
	}

	// Google API error (Gemini)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		upErr.StatusCode = apiErr.Code
		upErr.Category, upErr.Message, upErr.Retryable = categorizeStatus(apiErr.Code)
		if apiErr.Message != "" {
			upErr.Message = upErr.Message + ": " + apiErr.Message
		}
		return upErr
	}

	// Context errors
	if errors.Is(err, context.Canceled) {
		upErr.Category = "canceled"
		upErr.Message = "Request was canceled"
		return upErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		upErr.Category = "timeout"
		upErr.Message = "Request timeout"
		upErr.Retryable = true
		return upErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		upErr.Category = "network_error"
		upErr.Message = "Network connection error"
		upErr.Retryable = true
		if netErr.Timeout() {
			upErr.Category = "timeout"
			upErr.Message = "Request timeout"
		}
		return upErr
	}

	// Check error message for common patterns
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "quota") {
		upErr.Category = "quota_exceeded"
		upErr.Message = "API quota exceeded"
		return upErr
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") {
		upErr.Category = "network_error"
		upErr.Message = "Network connection error"
		upErr.Retryable = true
		return upErr
	}

	return upErr
}

// callWithRetry executes an upstream call with retry logic
func callWithRetry[T any](
	ctx context.Context,
	reqCtx *common.RequestContext,
	config RetryConfig,
	service string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr *UpstreamError

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			reqCtx.LogInfo("%s retry attempt %d/%d", service, attempt, attempts)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				reqCtx.LogInfo("✅ %s retry succeeded on attempt %d", service, attempt)
			}
			return result, nil
		}

		// Caller gave up; nothing left to retry for
		if ctx.Err() != nil {
			return zero, err
		}

		lastErr = categorizeError(service, err)
		reqCtx.LogWarning("%s call failed (attempt %d/%d): %s", service, attempt, attempts, lastErr.Error())

		if !lastErr.Retryable {
			return zero, lastErr
		}

		if attempt >= attempts {
			break
		}

		delay := calculateBackoff(attempt, config)
		if lastErr.Category == "rate_limit" {
			delay = delay * 2
			if lastErr.RetryAfter > delay {
				delay = lastErr.RetryAfter
			}
			reqCtx.LogWarning("%s rate limit hit, waiting %v before retry", service, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context canceled during retry wait: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s call failed after %d attempts: %w", service, attempts, lastErr)
}

// calculateBackoff computes exponential backoff delay
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= config.BackoffMultiple
	}

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
