// Package document turns a source PDF into single-page documents with their
// embedded text.
package document

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// LoadFile reads and splits the PDF at path.
func LoadFile(path string) (*model.Document, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(filepath.Base(path), data)
}

// Load splits a PDF into single-page PDFs and extracts each page's embedded
// text. A page whose text cannot be extracted gets empty text.
func Load(name string, data []byte) (*model.Document, error) {
	if len(data) == 0 {
		return nil, common.ErrEmptyDocument
	}

	pages, err := Split(data)
	if err != nil {
		return nil, err
	}

	texts := ExtractText(data)
	for i := range pages {
		if i < len(texts) {
			pages[i].Text = texts[i]
		}
	}
	if len(texts) != len(pages) {
		slog.Warn("Text extraction page count differs from split",
			"document", name,
			"split_pages", len(pages),
			"text_pages", len(texts))
	}

	return &model.Document{
		Name:  name,
		Hash:  model.HashDocument(data),
		Pages: pages,
	}, nil
}

// Split writes every page of the PDF as its own single-page PDF.
func Split(data []byte) ([]model.Page, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	spans, err := api.SplitRaw(bytes.NewReader(data), 1, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidPDF, err)
	}
	if len(spans) == 0 {
		return nil, common.ErrEmptyDocument
	}

	pages := make([]model.Page, 0, len(spans))
	for i, span := range spans {
		pageData, err := io.ReadAll(span.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		pages = append(pages, model.Page{Index: i, Data: pageData})
	}
	return pages, nil
}

// ExtractText returns the embedded text of every page in order. It never
// fails: an unreadable document yields nil and an unreadable page yields "".
func ExtractText(data []byte) []string {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Debug("Embedded text unavailable", "error", err)
		return nil
	}

	count := reader.NumPage()
	texts := make([]string, count)
	for i := 1; i <= count; i++ {
		texts[i-1] = pageText(reader, i)
	}
	return texts
}

func pageText(reader *pdf.Reader, number int) (text string) {
	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Failed to extract page text", "page", number, "panic", r)
			text = ""
		}
	}()

	page := reader.Page(number)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		slog.Debug("Failed to extract page text", "page", number, "error", err)
		return ""
	}
	return strings.TrimSpace(content)
}
