// audit.go - Request audit records (metadata only, never extracted text)

package storage

import (
	"time"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/bosocmputer/ocr_text_extractor/internal/extract"
)

// RequestAudit summarizes one extraction request
type RequestAudit struct {
	RequestID       string            `bson:"request_id"`
	Endpoint        string            `bson:"endpoint"`
	StatusCode      int               `bson:"status_code"`
	Error           string            `bson:"error,omitempty"`
	Units           int               `bson:"units"`
	OCRFailures     int               `bson:"ocr_failures"`
	CleanupFailures int               `bson:"cleanup_failures"`
	Cleaned         int               `bson:"cleaned"`
	DurationMs      int64             `bson:"duration_ms"`
	Steps           []common.StepLog  `bson:"steps"`
	Tokens          common.TokenUsage `bson:"tokens"`
	CreatedAt       time.Time         `bson:"created_at"`
}

// NewRequestAudit builds an audit record from a finished request.
// results may be nil when the request failed before producing any.
func NewRequestAudit(reqCtx *common.RequestContext, statusCode int, results []extract.Result, reqErr error) *RequestAudit {
	audit := &RequestAudit{
		RequestID:  reqCtx.RequestID,
		Endpoint:   reqCtx.Endpoint,
		StatusCode: statusCode,
		Units:      len(results),
		DurationMs: time.Since(reqCtx.StartTime).Milliseconds(),
		Steps:      reqCtx.Steps,
		Tokens:     reqCtx.TotalTokens(),
		CreatedAt:  reqCtx.StartTime.UTC(),
	}
	if reqErr != nil {
		audit.Error = reqErr.Error()
	}

	for _, r := range results {
		switch {
		case r.Text == extract.OCRFailedMarker:
			audit.OCRFailures++
		case r.FilteredText == extract.CleanupFailedMarker:
			audit.CleanupFailures++
		case r.FilteredText != "":
			audit.Cleaned++
		}
	}

	return audit
}
