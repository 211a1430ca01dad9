package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/bosocmputer/ocr_text_extractor/internal/extract"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewRequestAudit_CountsOutcomes(t *testing.T) {
	reqCtx := common.NewRequestContext(nil, "/extract-images")
	reqCtx.StartStep("extract_images")
	reqCtx.EndStep("partial", nil)
	reqCtx.AddTokens(&common.TokenUsage{InputTokens: 100, OutputTokens: 40, TotalTokens: 140, CostUSD: 0.001})

	results := []extract.Result{
		{Type: extract.TypeImage, Filename: "a.png", Text: "Hello\n", FilteredText: "Hello"},
		{Type: extract.TypeImage, Filename: "b.png", Text: extract.OCRFailedMarker},
		{Type: extract.TypeImage, Filename: "c.png", Text: "x\n", FilteredText: extract.CleanupFailedMarker},
		{Type: extract.TypeImage, Filename: "d.png", Text: ""},
	}

	audit := NewRequestAudit(reqCtx, 200, results, nil)

	if audit.RequestID != reqCtx.RequestID || audit.Endpoint != "/extract-images" || audit.StatusCode != 200 {
		t.Errorf("identity fields = %+v", audit)
	}
	if audit.Units != 4 || audit.OCRFailures != 1 || audit.CleanupFailures != 1 || audit.Cleaned != 1 {
		t.Errorf("counts = units %d, ocr %d, cleanup %d, cleaned %d",
			audit.Units, audit.OCRFailures, audit.CleanupFailures, audit.Cleaned)
	}
	if audit.Tokens.TotalTokens != 140 || len(audit.Steps) != 1 || audit.Error != "" {
		t.Errorf("tokens/steps/error = %+v %+v %q", audit.Tokens, audit.Steps, audit.Error)
	}
}

func TestNewRequestAudit_StoresNoExtractedContent(t *testing.T) {
	reqCtx := common.NewRequestContext(nil, "/extract-pdf")
	results := []extract.Result{
		{Type: extract.TypePDF, Page: 1, Text: "confidential invoice 4711", FilteredText: "Confidential invoice 4711"},
	}

	raw, err := bson.Marshal(NewRequestAudit(reqCtx, 200, results, nil))
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	if strings.Contains(string(raw), "4711") {
		t.Error("audit record must not contain extracted text")
	}
}

func TestNewRequestAudit_RequestError(t *testing.T) {
	reqCtx := common.NewRequestContext(nil, "/extract-pdf")

	audit := NewRequestAudit(reqCtx, 502, nil, errors.New("ocr submission failed: 401"))
	if audit.Units != 0 || audit.StatusCode != 502 || audit.Error != "ocr submission failed: 401" {
		t.Errorf("audit = %+v", audit)
	}

	var doc bson.M
	raw, _ := bson.Marshal(audit)
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("bson.Unmarshal: %v", err)
	}
	for _, key := range []string{"request_id", "endpoint", "status_code", "error", "created_at", "tokens"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing bson key %q", key)
		}
	}
}

func TestNewRequestAudit_StepKeys(t *testing.T) {
	reqCtx := common.NewRequestContext(nil, "/extract-pdf")
	reqCtx.StartStep("read_upload")
	reqCtx.EndStep("success", nil)
	reqCtx.StartStep("extract_pdf")
	reqCtx.EndStep("failed", errors.New("ocr operation failed"))

	raw, err := bson.Marshal(NewRequestAudit(reqCtx, 422, nil, errors.New("ocr operation failed")))
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	doc := bson.Raw(raw)

	for _, key := range []string{"name", "start_time", "duration_ms", "status"} {
		if _, err := doc.LookupErr("steps", "0", key); err != nil {
			t.Errorf("steps.0.%s missing: %v", key, err)
		}
	}
	if _, err := doc.LookupErr("steps", "0", "error"); err == nil {
		t.Error("successful step must omit error")
	}
	if got := doc.Lookup("steps", "1", "error").StringValue(); got != "ocr operation failed" {
		t.Errorf("steps.1.error = %q", got)
	}
	if _, err := doc.LookupErr("steps", "0", "starttime"); err == nil {
		t.Error("steps must use snake_case keys")
	}
}
