package ai

import "strings"

// OCRStatus is the status of an asynchronous Read operation
type OCRStatus string

const (
	OCRStatusNotStarted OCRStatus = "notStarted"
	OCRStatusRunning    OCRStatus = "running"
	OCRStatusSucceeded  OCRStatus = "succeeded"
	OCRStatusFailed     OCRStatus = "failed"
)

// IsTerminal reports whether polling can stop
func (s OCRStatus) IsTerminal() bool {
	return s != OCRStatusNotStarted && s != OCRStatusRunning
}

// Read API result structures
type ReadOperation struct {
	Status        OCRStatus      `json:"status"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult,omitempty"`
}

type AnalyzeResult struct {
	Version     string     `json:"version,omitempty"`
	ReadResults []ReadPage `json:"readResults"`
}

type ReadPage struct {
	Page  int        `json:"page"`
	Lines []ReadLine `json:"lines"`
}

type ReadLine struct {
	Text string `json:"text"`
}

// OCRPage is one page of recognized text lines, in reading order
type OCRPage struct {
	Number int
	Lines  []string
}

// Text joins the page's lines with line breaks
func (p OCRPage) Text() string {
	return strings.Join(p.Lines, "\n")
}

// OCRResult is the outcome of a succeeded OCR job
type OCRResult struct {
	OperationID string
	Pages       []OCRPage
}

// Text flattens all pages; every line is followed by a line break
func (r *OCRResult) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, page := range r.Pages {
		for _, line := range page.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// newOCRResult converts a succeeded Read operation into page-structured text
func newOCRResult(operationID string, op *ReadOperation) *OCRResult {
	result := &OCRResult{OperationID: operationID}
	if op == nil || op.AnalyzeResult == nil {
		return result
	}

	for i, page := range op.AnalyzeResult.ReadResults {
		number := page.Page
		if number == 0 {
			number = i + 1
		}
		lines := make([]string, 0, len(page.Lines))
		for _, line := range page.Lines {
			lines = append(lines, line.Text)
		}
		result.Pages = append(result.Pages, OCRPage{Number: number, Lines: lines})
	}
	return result
}
