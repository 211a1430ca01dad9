// poller.go - Submit-and-poll loop for asynchronous OCR jobs

package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
)

// ReadAPI is the asynchronous submit / poll contract of the OCR service
type ReadAPI interface {
	Submit(ctx context.Context, data []byte) (string, error)
	GetResult(ctx context.Context, operationID string) (*ReadOperation, error)
}

// PollerConfig bounds the polling loop
type PollerConfig struct {
	Interval    time.Duration // wait between status checks
	MaxAttempts int           // status checks before giving up; 0 = unlimited
	Timeout     time.Duration // whole job, submission included; 0 = no timeout
	Retry       RetryConfig   // per-call retry of transient upstream errors
}

// JobPoller implements OCREngine on top of a ReadAPI
type JobPoller struct {
	api    ReadAPI
	config PollerConfig
}

// NewJobPoller creates a poller; a non-positive interval falls back to one second
func NewJobPoller(api ReadAPI, config PollerConfig) *JobPoller {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &JobPoller{api: api, config: config}
}

// GetProviderName returns "azure-read"
func (p *JobPoller) GetProviderName() string {
	return azureReadService
}

// SubmitAndWait submits data and polls until the job is terminal
func (p *JobPoller) SubmitAndWait(parent context.Context, data []byte, reqCtx *common.RequestContext) (*OCRResult, error) {
	ctx := parent
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, p.config.Timeout)
		defer cancel()
	}

	operationID, err := callWithRetry(ctx, reqCtx, p.config.Retry, "ocr submit",
		func(ctx context.Context) (string, error) {
			return p.api.Submit(ctx, data)
		})
	if err != nil {
		if abortErr := p.abortError(parent, ctx, ""); abortErr != nil {
			return nil, abortErr
		}
		return nil, fmt.Errorf("%w: %w", ErrOCRSubmission, err)
	}

	reqCtx.LogInfo("📄 OCR operation %s submitted (%.2f KB)", operationID, float64(len(data))/1024.0)

	for attempt := 1; ; attempt++ {
		operation, err := callWithRetry(ctx, reqCtx, p.config.Retry, "ocr poll",
			func(ctx context.Context) (*ReadOperation, error) {
				return p.api.GetResult(ctx, operationID)
			})
		if err != nil {
			if abortErr := p.abortError(parent, ctx, operationID); abortErr != nil {
				return nil, abortErr
			}
			return nil, fmt.Errorf("%w: polling operation %s: %w", ErrOCRJobFailed, operationID, err)
		}

		if operation.Status.IsTerminal() {
			if operation.Status != OCRStatusSucceeded {
				return nil, fmt.Errorf("%w: operation %s finished with status %q", ErrOCRJobFailed, operationID, operation.Status)
			}
			result := newOCRResult(operationID, operation)
			reqCtx.LogInfo("✅ OCR operation %s succeeded after %d check(s): %d page(s)", operationID, attempt, len(result.Pages))
			return result, nil
		}

		if p.config.MaxAttempts > 0 && attempt >= p.config.MaxAttempts {
			return nil, fmt.Errorf("%w: operation %s still %q after %d checks", ErrOCRTimeout, operationID, operation.Status, attempt)
		}

		timer := time.NewTimer(p.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, p.abortError(parent, ctx, operationID)
		case <-timer.C:
		}
	}
}

// abortError explains why ctx ended, or returns nil when it has not
func (p *JobPoller) abortError(parent, ctx context.Context, operationID string) error {
	if parent.Err() != nil {
		return fmt.Errorf("ocr operation %q abandoned: %w", operationID, parent.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: operation %q exceeded %v", ErrOCRTimeout, operationID, p.config.Timeout)
	}
	return nil
}
