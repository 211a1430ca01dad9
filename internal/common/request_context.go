// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"sync"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/configs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestContext tracks the entire request lifecycle with timing and costs.
// Steps are driven by the handler goroutine; logging and token accounting
// are safe to call from the per-unit goroutines.
type RequestContext struct {
	RequestID        string
	Endpoint         string
	StartTime        time.Time
	Steps            []StepLog
	CurrentStep      string
	CurrentStepStart time.Time

	logger      *zap.Logger
	mu          sync.Mutex
	totalTokens TokenUsage
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string    `json:"name" bson:"name"`
	StartTime time.Time `json:"start_time" bson:"start_time"`
	Duration  int64     `json:"duration_ms" bson:"duration_ms"`
	Status    string    `json:"status" bson:"status"` // "success", "failed", "partial"
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
}

// TokenUsage tracks LLM token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens" bson:"input_tokens"`
	OutputTokens int     `json:"output_tokens" bson:"output_tokens"`
	TotalTokens  int     `json:"total_tokens" bson:"total_tokens"`
	CostUSD      float64 `json:"cost_usd" bson:"cost_usd"`
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(logger *zap.Logger, endpoint string) *RequestContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	reqID := uuid.New().String()
	now := time.Now()

	rc := &RequestContext{
		RequestID: reqID,
		Endpoint:  endpoint,
		StartTime: now,
		Steps:     []StepLog{},
		logger:    logger.With(zap.String("request_id", reqID)),
	}
	rc.logger.Info("🚀 request received", zap.String("endpoint", endpoint))
	return rc
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()
	rc.logger.Info("┌── step started", zap.String("step", stepName))
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
	}

	if err != nil {
		stepLog.Error = err.Error()
		rc.logger.Error("❌ step failed",
			zap.String("step", rc.CurrentStep),
			zap.Int64("duration_ms", duration),
			zap.Error(err))
	} else {
		rc.logger.Info("└── ✅ step finished",
			zap.String("step", rc.CurrentStep),
			zap.String("status", status),
			zap.Int64("duration_ms", duration))
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
}

// AddTokens accumulates token usage from one upstream call
func (rc *RequestContext) AddTokens(tokens *TokenUsage) {
	if tokens == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.totalTokens.InputTokens += tokens.InputTokens
	rc.totalTokens.OutputTokens += tokens.OutputTokens
	rc.totalTokens.TotalTokens += tokens.TotalTokens
	rc.totalTokens.CostUSD += tokens.CostUSD
}

// TotalTokens returns a snapshot of the accumulated token usage
func (rc *RequestContext) TotalTokens() TokenUsage {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.totalTokens
}

// CalculateTokenCost computes USD cost of a cleanup call from token counts
func CalculateTokenCost(inputTokens, outputTokens int) TokenUsage {
	inputCost := float64(inputTokens) * configs.CLEANUP_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.CLEANUP_OUTPUT_PRICE_PER_MILLION / 1_000_000

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      inputCost + outputCost,
	}
}

// GetSummary returns a final summary of the entire request and logs it
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()
	tokens := rc.TotalTokens()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	summary := map[string]interface{}{
		"request_id":         rc.RequestID,
		"endpoint":           rc.Endpoint,
		"total_duration_ms":  totalDuration,
		"total_duration_sec": float64(totalDuration) / 1000,
		"step_breakdown":     stepBreakdown,
		"total_steps":        len(rc.Steps),
		"token_usage": map[string]interface{}{
			"input_tokens":  tokens.InputTokens,
			"output_tokens": tokens.OutputTokens,
			"total_tokens":  tokens.TotalTokens,
			"cost_usd":      fmt.Sprintf("$%.4f", tokens.CostUSD),
		},
	}

	rc.logger.Info("🎯 request summary",
		zap.Float64("duration_sec", float64(totalDuration)/1000),
		zap.Int("steps", len(rc.Steps)),
		zap.String("tokens", fmt.Sprintf("%s in + %s out = %s",
			formatNumber(tokens.InputTokens),
			formatNumber(tokens.OutputTokens),
			formatNumber(tokens.TotalTokens))),
		zap.Float64("cost_usd", tokens.CostUSD))

	return summary
}

// LogInfo logs info-level message with request ID field
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	rc.logger.Info(fmt.Sprintf(format, args...))
}

// LogWarning logs warning-level message with request ID field
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	rc.logger.Warn(fmt.Sprintf(format, args...))
}

// LogError logs error-level message with request ID field
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	rc.logger.Error(fmt.Sprintf(format, args...))
}

// formatNumber adds comma separators to numbers
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n%1000000)/1000, n%1000)
}
