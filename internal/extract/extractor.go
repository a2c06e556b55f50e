// Package extract turns PDF bytes into text or page images. It decides
// whether a document is digital (usable text layer) or scanned (needs OCR or
// a vision model) and rasterizes pages for the scanned paths.
package extract

import (
	"bytes"
	"context"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// PageBreak separates pages in concatenated text so downstream consumers
// keep a document-order signal. Form feed matches what OCR tooling emits.
const PageBreak = "\n\f\n"

// Classification says whether the document carries a usable text layer.
type Classification string

const (
	Digital Classification = "digital"
	Scanned Classification = "scanned"
)

// Page is the text layer of a single page.
type Page struct {
	Number int // 1-based
	Text   string
}

// Document is the result of opening and reading a PDF's text layers.
type Document struct {
	Pages          []Page
	Classification Classification
}

// Text returns the concatenated page text with page-break markers.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, PageBreak)
}

// Extractor reads PDFs with MuPDF (go-fitz).
type Extractor struct {
	// MinTextPerPage is the average extracted character count per page below
	// which the document is classified as scanned.
	MinTextPerPage int
	// JPEGQuality for rasterized pages.
	JPEGQuality int
}

func New(minTextPerPage int) *Extractor {
	if minTextPerPage <= 0 {
		minTextPerPage = 100
	}
	return &Extractor{MinTextPerPage: minTextPerPage, JPEGQuality: 85}
}

// Extract opens the PDF and pulls every page's text layer. A PDF that cannot
// be opened fails with DocumentUnreadable; zero pages fails with
// EmptyDocument.
func (e *Extractor) Extract(ctx context.Context, pdf []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, statement.WrapError(statement.KindDocumentUnreadable, "cannot open PDF", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, statement.NewError(statement.KindEmptyDocument, "PDF has zero pages")
	}

	out := &Document{Pages: make([]Page, 0, n)}
	total := 0
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		text, err := doc.Text(i)
		if err != nil {
			// A broken page does not make the whole document unreadable;
			// it just contributes nothing to the text layer.
			text = ""
		}
		text = strings.TrimSpace(text)
		total += len(text)
		out.Pages = append(out.Pages, Page{Number: i + 1, Text: text})
	}

	out.Classification = classify(total, n, e.MinTextPerPage)
	return out, nil
}

// classify applies the text-density rule: a document whose average extracted
// characters per page falls below min has no usable text layer.
func classify(totalChars, pages, min int) Classification {
	if totalChars/pages < min {
		return Scanned
	}
	return Digital
}

// Rasterize renders every page to a JPEG at the given DPI, in page order.
// Lower DPI keeps vision payloads small; OCR wants 300.
func (e *Extractor) Rasterize(ctx context.Context, pdf []byte, dpi float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, statement.WrapError(statement.KindDocumentUnreadable, "cannot open PDF", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, statement.NewError(statement.KindEmptyDocument, "PDF has zero pages")
	}

	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, statement.WrapError(statement.KindDocumentUnreadable,
				"cannot rasterize page", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.JPEGQuality}); err != nil {
			return nil, statement.WrapError(statement.KindDocumentUnreadable,
				"cannot encode page image", err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}
