package ingestion

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Page is the text of one page of a document. Formats without page
// structure produce a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// totalChars counts the extracted characters across pages, used to decide
// whether native extraction produced enough text to skip OCR.
func totalChars(pages []Page) int {
	total := 0
	for _, page := range pages {
		total += len(strings.TrimSpace(page.Text))
	}
	return total
}

// extractNative extracts text from the document using format-specific
// parsers, without OCR. The format is chosen by file extension.
func extractNative(filename string, data []byte) ([]Page, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".txt", ".md", ".text", ".markdown":
		return []Page{{Number: 1, Text: string(data)}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// extractPDF extracts per-page plain text from a PDF in memory.
func extractPDF(data []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not sink the document;
			// it simply contributes no text.
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// extractDOCX extracts the document body of a DOCX file in memory.
// DOCX has no page structure, so the whole body is page 1.
func extractDOCX(data []byte) ([]Page, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	defer reader.Close()

	content := reader.Editable().GetContent()

	var builder strings.Builder
	for _, paragraph := range strings.Split(content, "\n") {
		paragraph = stripTags(paragraph)
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		builder.WriteString(paragraph)
		builder.WriteString("\n")
	}
	return []Page{{Number: 1, Text: builder.String()}}, nil
}

// stripTags removes XML tags left in extracted DOCX content.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var builder strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
