// Package pdfutil opens certificate PDFs with ledongthuc/pdf.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for documents that parse but contain no pages.
var ErrNoPages = errors.New("pdf has no pages")

// Check confirms that r holds a PDF with at least one page.
func Check(r io.ReaderAt, size int64) (err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	if doc.NumPage() == 0 {
		return ErrNoPages
	}
	return nil
}

// ExtractText reads PDF bytes and returns the plain text of every page.
func ExtractText(data []byte) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String()), nil
}
