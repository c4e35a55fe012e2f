// Package docparse converts a raw source document into structured text.
// Page boundaries are preserved as metadata; losing them would break
// citation downstream.
package docparse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/finsightai/finsight/engine/domain"
)

// Page is one page of extracted text.
type Page struct {
	Number int
	Text   string
}

// Document is a parsed source document. Immutable once ingested.
type Document struct {
	File  string
	Pages []Page
}

// Parse reads the document at path and extracts its text page by page.
// Supported formats: .pdf, .txt, .md. Anything else, or an unreadable
// file, fails with the parse error kind and nothing is ingested.
func Parse(ctx context.Context, path string) (Document, error) {
	const op = "docparse.Parse"

	if _, err := os.Stat(path); err != nil {
		return Document{}, domain.Wrap(domain.ErrParse, op, err)
	}

	var (
		doc Document
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc, err = parsePDF(ctx, path)
	case ".txt", ".md":
		doc, err = parseText(path)
	default:
		return Document{}, domain.Wrapf(domain.ErrParse, op, "unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		return Document{}, err
	}

	if len(doc.Pages) == 0 {
		return Document{}, domain.Wrapf(domain.ErrParse, op, "no extractable text in %s", path)
	}
	return doc, nil
}

func parsePDF(ctx context.Context, path string) (Document, error) {
	const op = "docparse.parsePDF"

	f, reader, err := pdf.Open(path)
	if err != nil {
		return Document{}, domain.Wrap(domain.ErrParse, op, err)
	}
	defer f.Close()

	doc := Document{File: filepath.Base(path)}
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, domain.Wrap(domain.ErrParse, op, err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Document{}, domain.Wrap(domain.ErrParse, op, fmt.Errorf("page %d: %w", i, err))
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}
	return doc, nil
}

func parseText(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, domain.Wrap(domain.ErrParse, "docparse.parseText", err)
	}
	text := strings.TrimSpace(string(data))
	doc := Document{File: filepath.Base(path)}
	if text != "" {
		doc.Pages = []Page{{Number: 1, Text: text}}
	}
	return doc, nil
}
