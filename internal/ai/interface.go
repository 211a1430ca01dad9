// interface.go - Upstream service interfaces used by the upload orchestrator

package ai

import (
	"context"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
)

// OCREngine submits a document to an OCR service and waits for the result
type OCREngine interface {
	// SubmitAndWait sends one image or PDF and blocks until the OCR job is
	// terminal, the timeout elapses or ctx is cancelled.
	// Returns ErrOCRSubmission, ErrOCRJobFailed or ErrOCRTimeout (wrapped) on failure.
	SubmitAndWait(ctx context.Context, data []byte, reqCtx *common.RequestContext) (*OCRResult, error)

	// GetProviderName returns the name of the provider (e.g., "azure-read")
	GetProviderName() string
}

// TextCleaner reformats raw OCR text with an LLM without changing its meaning
type TextCleaner interface {
	// Clean returns the cleaned text and the tokens spent.
	// Any failure is reported as ErrCleanupFailed (wrapped).
	Clean(ctx context.Context, rawText string, reqCtx *common.RequestContext) (string, *common.TokenUsage, error)

	// GetProviderName returns the name of the provider (e.g., "azure-openai", "gemini")
	GetProviderName() string

	// Close releases the underlying client
	Close() error
}

// CleanupSystemPrompt is the fixed instruction sent with every cleanup call
const CleanupSystemPrompt = `You clean up text produced by optical character recognition (OCR).
Fix broken line wraps, stray spacing, split words and obvious character recognition mistakes, and lay the text out so it is easy to read.
Do not add, remove, summarize, translate or reinterpret any content. The meaning must stay exactly the same.
Return only the cleaned text, without any commentary.`
