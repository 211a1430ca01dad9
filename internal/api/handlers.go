// handlers.go - HTTP handlers for image and PDF text extraction

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bosocmputer/ocr_text_extractor/internal/ai"
	"github.com/bosocmputer/ocr_text_extractor/internal/common"
	"github.com/bosocmputer/ocr_text_extractor/internal/extract"
	"github.com/bosocmputer/ocr_text_extractor/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Multipart form fields
const (
	imagesField = "files"
	pdfField    = "file"
)

// Extractor is the orchestration surface used by the handlers
type Extractor interface {
	ExtractImages(ctx context.Context, units []extract.UploadUnit, reqCtx *common.RequestContext) []extract.Result
	ExtractPDF(ctx context.Context, unit extract.UploadUnit, reqCtx *common.RequestContext) ([]extract.Result, error)
}

// AuditRecorder persists request metadata
type AuditRecorder interface {
	Record(ctx context.Context, audit *storage.RequestAudit) error
}

// ErrorResponse is the error envelope shared by both endpoints
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	RequestID string `json:"request_id"`
}

// Handler serves the extraction endpoints
type Handler struct {
	extractor Extractor
	audit     AuditRecorder // optional
	logger    *zap.Logger
}

// NewHandler creates the handler set; audit may be nil
func NewHandler(extractor Extractor, audit AuditRecorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{extractor: extractor, audit: audit, logger: logger}
}

// ExtractImagesHandler handles POST /extract-images.
// Per-file failures are reported inline; only request-level problems use the error envelope.
func (h *Handler) ExtractImagesHandler(c *gin.Context) {
	reqCtx := common.NewRequestContext(h.logger, c.FullPath())
	c.Header("X-Request-ID", reqCtx.RequestID)
	defer h.recoverFailure(c, reqCtx)

	// Step 1: Read uploaded files
	reqCtx.StartStep("read_uploads")
	form, err := c.MultipartForm()
	if err != nil {
		reqCtx.EndStep("failed", err)
		if isBodyTooLarge(err) {
			h.respondError(c, reqCtx, http.StatusRequestEntityTooLarge, "Upload too large", err)
			return
		}
		h.respondError(c, reqCtx, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	files := form.File[imagesField]
	if len(files) == 0 {
		err := fmt.Errorf("form field %q must contain at least one file", imagesField)
		reqCtx.EndStep("failed", err)
		h.respondError(c, reqCtx, http.StatusBadRequest, "No files uploaded", err)
		return
	}

	units := make([]extract.UploadUnit, len(files))
	for i, fh := range files {
		units[i] = readUploadUnit(fh)
	}
	reqCtx.LogInfo("📥 Received %d image(s)", len(units))
	reqCtx.EndStep("success", nil)

	// Step 2: OCR + cleanup per image
	reqCtx.StartStep("extract_images")
	results := h.extractor.ExtractImages(c.Request.Context(), units, reqCtx)
	reqCtx.EndStep(batchStatus(results), nil)

	h.finish(c, reqCtx, http.StatusOK, results, nil)
	c.JSON(http.StatusOK, results)
}

// ExtractPDFHandler handles POST /extract-pdf
func (h *Handler) ExtractPDFHandler(c *gin.Context) {
	reqCtx := common.NewRequestContext(h.logger, c.FullPath())
	c.Header("X-Request-ID", reqCtx.RequestID)
	defer h.recoverFailure(c, reqCtx)

	// Step 1: Read uploaded document
	reqCtx.StartStep("read_upload")
	fh, err := c.FormFile(pdfField)
	if err != nil {
		err = fmt.Errorf("form field %q: %w", pdfField, err)
		reqCtx.EndStep("failed", err)
		if isBodyTooLarge(err) {
			h.respondError(c, reqCtx, http.StatusRequestEntityTooLarge, "Upload too large", err)
			return
		}
		h.respondError(c, reqCtx, http.StatusBadRequest, "No file uploaded", err)
		return
	}
	unit := readUploadUnit(fh)
	if unit.Err != nil {
		reqCtx.EndStep("failed", unit.Err)
		h.respondError(c, reqCtx, http.StatusBadRequest, "Could not read uploaded file", unit.Err)
		return
	}
	reqCtx.LogInfo("📥 Received %s (%.2f KB)", unit.Label, float64(len(unit.Data))/1024.0)
	reqCtx.EndStep("success", nil)

	// Step 2: OCR the document and clean every page
	reqCtx.StartStep("extract_pdf")
	results, err := h.extractor.ExtractPDF(c.Request.Context(), unit, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", err)
		status, message := statusForError(err)
		h.respondError(c, reqCtx, status, message, err)
		return
	}
	reqCtx.EndStep(batchStatus(results), nil)

	h.finish(c, reqCtx, http.StatusOK, results, nil)
	c.JSON(http.StatusOK, results)
}

// statusForError maps a request-level failure to an HTTP status and a short message
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, extract.ErrInvalidUpload):
		return http.StatusBadRequest, "Invalid upload"
	case errors.Is(err, extract.ErrNotPDF):
		return http.StatusBadRequest, "Uploaded file is not a PDF"
	case errors.Is(err, extract.ErrTooManyPages):
		return http.StatusBadRequest, "PDF has too many pages"
	case errors.Is(err, ai.ErrOCRJobFailed):
		return http.StatusUnprocessableEntity, "OCR operation failed"
	case errors.Is(err, ai.ErrOCRSubmission):
		return http.StatusBadGateway, "OCR service rejected or did not accept the document"
	case errors.Is(err, ai.ErrOCRTimeout):
		return http.StatusGatewayTimeout, "OCR operation timed out"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request processing timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// recoverFailure turns a panic escaping the handler into the error envelope
func (h *Handler) recoverFailure(c *gin.Context, reqCtx *common.RequestContext) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("unexpected failure: %v", r)
	if reqCtx.CurrentStep != "" {
		reqCtx.EndStep("failed", err)
	}
	if c.Writer.Written() {
		return
	}
	h.respondError(c, reqCtx, http.StatusInternalServerError, "Internal server error", err)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (h *Handler) respondError(c *gin.Context, reqCtx *common.RequestContext, status int, message string, err error) {
	h.finish(c, reqCtx, status, nil, err)
	c.JSON(status, ErrorResponse{
		Error:     message,
		Details:   err.Error(),
		RequestID: reqCtx.RequestID,
	})
}

// finish logs the request summary and writes the audit record when enabled
func (h *Handler) finish(c *gin.Context, reqCtx *common.RequestContext, status int, results []extract.Result, reqErr error) {
	reqCtx.GetSummary()

	if h.audit == nil {
		return
	}
	audit := storage.NewRequestAudit(reqCtx, status, results, reqErr)
	if err := h.audit.Record(context.WithoutCancel(c.Request.Context()), audit); err != nil {
		reqCtx.LogWarning("⚠️  Failed to write audit record: %v", err)
	}
}

// readUploadUnit reads one multipart file; read failures are carried in the unit
func readUploadUnit(fh *multipart.FileHeader) extract.UploadUnit {
	unit := extract.UploadUnit{Label: fh.Filename}

	f, err := fh.Open()
	if err != nil {
		unit.Err = fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		return unit
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		unit.Err = fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		return unit
	}
	if len(data) == 0 {
		unit.Err = fmt.Errorf("%s is empty", fh.Filename)
		return unit
	}

	unit.Data = data
	return unit
}

// batchStatus returns "success" when no unit failed, "partial" otherwise
func batchStatus(results []extract.Result) string {
	for _, r := range results {
		if r.Text == extract.OCRFailedMarker || r.FilteredText == extract.CleanupFailedMarker {
			return "partial"
		}
	}
	return "success"
}
