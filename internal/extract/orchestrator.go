// orchestrator.go - Runs every upload unit through OCR and optional cleanup

package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/bosocmputer/ocr_text_extractor/internal/ai"
	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/bosocmputer/ocr_text_extractor/internal/processor"
	"golang.org/x/sync/errgroup"
)

// Orchestrator fans upload units out to the OCR engine and the text cleaner
type Orchestrator struct {
	ocr     ai.OCREngine
	cleaner ai.TextCleaner // nil disables cleanup
	opts    Options
}

// NewOrchestrator creates an orchestrator; cleaner may be nil
func NewOrchestrator(ocr ai.OCREngine, cleaner ai.TextCleaner, opts Options) *Orchestrator {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Orchestrator{ocr: ocr, cleaner: cleaner, opts: opts}
}

// CleanupEnabled reports whether a text cleaner is configured
func (o *Orchestrator) CleanupEnabled() bool {
	return o.cleaner != nil
}

// ExtractImages returns exactly one result per unit, in input order.
// Failures of a single unit are rendered as markers and never abort the batch.
func (o *Orchestrator) ExtractImages(ctx context.Context, units []UploadUnit, reqCtx *common.RequestContext) []Result {
	results := make([]Result, len(units))

	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)

	for i, unit := range units {
		g.Go(func() error {
			results[i] = o.extractImage(ctx, unit, reqCtx)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) extractImage(ctx context.Context, unit UploadUnit, reqCtx *common.RequestContext) (result Result) {
	result = Result{
		Type:        TypeImage,
		Filename:    unit.Label,
		ImageBase64: base64.StdEncoding.EncodeToString(unit.Data),
	}

	defer func() {
		if r := recover(); r != nil {
			reqCtx.LogError("💥 Unexpected failure while processing %s: %v", unit.Label, r)
			result.Text = OCRFailedMarker
			result.FilteredText = ""
		}
	}()

	if unit.Err != nil {
		reqCtx.LogWarning("⚠️  Could not read %s: %v", unit.Label, unit.Err)
		result.Text = OCRFailedMarker
		return result
	}
	if err := ctx.Err(); err != nil {
		reqCtx.LogWarning("⚠️  Skipping %s, request is no longer running: %v", unit.Label, err)
		result.Text = OCRFailedMarker
		return result
	}

	ocrResult, err := o.ocr.SubmitAndWait(ctx, o.prepare(unit, reqCtx), reqCtx)
	if err != nil {
		reqCtx.LogWarning("⚠️  OCR failed for %s: %v", unit.Label, err)
		result.Text = OCRFailedMarker
		return result
	}

	result.Text = ocrResult.Text()
	if result.Text == "" {
		reqCtx.LogWarning("⚠️  No text found in %s", unit.Label)
	}
	result.FilteredText = o.clean(ctx, result.Text, unit.Label, reqCtx)
	return result
}

// ExtractPDF submits the whole document once and returns one result per page.
// OCR failures fail the request; cleanup failures become markers.
func (o *Orchestrator) ExtractPDF(ctx context.Context, unit UploadUnit, reqCtx *common.RequestContext) ([]Result, error) {
	if unit.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, unit.Err)
	}
	if len(unit.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidUpload, unit.Label)
	}
	if !processor.IsPDF(unit.Data) {
		return nil, fmt.Errorf("%w: %s sniffed as %s", ErrNotPDF, unit.Label, processor.DetectMIME(unit.Data))
	}

	if o.opts.MaxPDFPages > 0 {
		pages, err := processor.CountPDFPages(unit.Data)
		switch {
		case err != nil:
			reqCtx.LogWarning("⚠️  Could not count pages of %s, leaving the check to the OCR service: %v", unit.Label, err)
		case pages > o.opts.MaxPDFPages:
			return nil, fmt.Errorf("%w: %d pages, limit is %d", ErrTooManyPages, pages, o.opts.MaxPDFPages)
		default:
			reqCtx.LogInfo("📑 %s has %d page(s)", unit.Label, pages)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s not submitted: %w", unit.Label, err)
	}

	ocrResult, err := o.ocr.SubmitAndWait(ctx, unit.Data, reqCtx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(ocrResult.Pages))

	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)

	for i, page := range ocrResult.Pages {
		g.Go(func() error {
			text := page.Text()
			results[i] = Result{
				Type:         TypePDF,
				Page:         i + 1,
				Text:         text,
				FilteredText: o.clean(ctx, text, fmt.Sprintf("%s page %d", unit.Label, i+1), reqCtx),
				ImageBase64:  "",
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// clean returns the cleaned text, the cleanup marker on failure,
// or "" when cleanup is disabled or there is nothing to clean
func (o *Orchestrator) clean(ctx context.Context, text, label string, reqCtx *common.RequestContext) (cleaned string) {
	if o.cleaner == nil || strings.TrimSpace(text) == "" {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			reqCtx.LogError("💥 Unexpected failure while cleaning %s: %v", label, r)
			cleaned = CleanupFailedMarker
		}
	}()

	cleaned, tokens, err := o.cleaner.Clean(ctx, text, reqCtx)
	if err != nil {
		reqCtx.LogWarning("⚠️  Cleanup failed for %s: %v", label, err)
		return CleanupFailedMarker
	}
	reqCtx.AddTokens(tokens)
	return cleaned
}

// prepare returns the bytes to submit; the original upload is kept on any preprocessing error
func (o *Orchestrator) prepare(unit UploadUnit, reqCtx *common.RequestContext) []byte {
	if !o.opts.Preprocess {
		return unit.Data
	}
	if !processor.IsImage(unit.Data) {
		reqCtx.LogWarning("⚠️  %s sniffed as %s, sending as uploaded", unit.Label, processor.DetectMIME(unit.Data))
		return unit.Data
	}

	data, resized, err := processor.PrepareForOCR(unit.Data, o.opts.MaxImageDimension)
	if err != nil {
		reqCtx.LogWarning("⚠️  Preprocessing skipped for %s: %v", unit.Label, err)
		return unit.Data
	}
	if resized {
		reqCtx.LogInfo("🖼️  %s downscaled to fit %dpx (%d → %d bytes)", unit.Label, o.opts.MaxImageDimension, len(unit.Data), len(data))
	}
	return data
}
