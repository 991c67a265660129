package services

import (
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned when a file cannot be read as a PDF.
// Fatal for the ingestion job; redelivery will not help.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// PDFExtractor reads per-page plain text out of a PDF file.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns text per page, 1-based page numbers, skipping
// nothing: pages that fail individually are returned empty rather than
// aborting the document.
func (e *PDFExtractor) ExtractPages(path string) ([]PageText, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]PageText, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Keep the page slot so numbering stays aligned with the
			// source document.
			pages = append(pages, PageText{Number: i, Text: ""})
			continue
		}
		pages = append(pages, PageText{Number: i, Text: text})
	}
	return pages, nil
}

// PageCount reads only the page tree, used at upload time for the
// document record.
func (e *PDFExtractor) PageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}
