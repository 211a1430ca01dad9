// types.go - Upload units, extraction results and failure markers

package extract

import "errors"

// Marker strings rendered in place of text when a stage fails
const (
	OCRFailedMarker     = "Error: OCR operation failed."
	CleanupFailedMarker = "Error: Text cleanup failed."
)

// Result types
const (
	TypeImage = "image"
	TypePDF   = "pdf"
)

// Request-level failures of the PDF flow
var (
	ErrInvalidUpload = errors.New("invalid upload")
	ErrNotPDF        = errors.New("uploaded file is not a PDF")
	ErrTooManyPages  = errors.New("PDF has too many pages")
)

// UploadUnit is one uploaded blob plus its label (filename).
// Err is set when the upload could not be read; the unit still yields a result.
type UploadUnit struct {
	Label string
	Data  []byte
	Err   error
}

// Result is the JSON shape returned for one image or one PDF page
type Result struct {
	Type         string `json:"type"`
	Filename     string `json:"filename,omitempty"`
	Page         int    `json:"page,omitempty"`
	Text         string `json:"text"`
	FilteredText string `json:"filtered_text,omitempty"`
	ImageBase64  string `json:"image_base64"`
}

// Options tunes the orchestrator
type Options struct {
	MaxConcurrency    int  // units processed at once; < 1 means 1
	Preprocess        bool // downscale oversize images before OCR
	MaxImageDimension int
	MaxPDFPages       int // 0 = unlimited
}
