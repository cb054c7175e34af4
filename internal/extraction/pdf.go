// Package extraction turns bank-statement PDFs into parsed transactions
// using text extraction and rule-based line matching.
package extraction

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	maxTextBytes = 100 * 1024 // cap for extracted text

	// scannedThreshold is the chars-per-page density below which a PDF is
	// considered scanned (image-only) and unusable for text extraction.
	scannedThreshold = 50
)

// PDFAnalysis contains the text extracted from a statement PDF.
type PDFAnalysis struct {
	PageCount int
	Text      string
	Lines     []string
	IsScanned bool
}

// AnalyzePDF extracts plain text from a PDF. It recovers from parser panics
// (the PDF library panics on some malformed files) and reports those as
// errors instead.
func AnalyzePDF(data []byte) (result *PDFAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf analysis panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf reader: %w", err)
	}

	pageCount := reader.NumPage()
	if pageCount < 1 {
		pageCount = 1
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract plain text: %w", err)
	}
	textBytes, err := io.ReadAll(io.LimitReader(plainText, maxTextBytes))
	if err != nil {
		return nil, fmt.Errorf("read plain text: %w", err)
	}
	text := string(textBytes)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return &PDFAnalysis{
		PageCount: pageCount,
		Text:      text,
		Lines:     lines,
		IsScanned: len(text)/pageCount < scannedThreshold,
	}, nil
}
