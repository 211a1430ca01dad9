// upload.go - Content sniffing and PDF inspection of uploaded files

package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// DetectMIME returns the content type sniffed from the file's magic bytes
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsPDF reports whether data starts like a PDF document
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}

// IsImage reports whether data sniffs as any image type
func IsImage(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// CountPDFPages reads the page count from the document catalog.
// Malformed documents return an error instead of panicking.
func CountPDFPages(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	return reader.NumPage(), nil
}

// imageConfig reads dimensions and format without decoding the pixels
func imageConfig(data []byte) (image.Config, string, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return config, format, nil
}
