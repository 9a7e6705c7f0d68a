package compliance

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/xuri/excelize/v2"
)

// docxBody is the part of a .docx archive holding the document text.
const docxBody = "word/document.xml"

// extractText returns the indexable text of a monitored file, chosen by
// extension. Anything not listed is read as plain text.
func extractText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(ctx, path)
	case ".docx":
		return docxText(path)
	case ".xlsx":
		return xlsxText(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return "", err
		}
		lines := make([]string, len(rows))
		for i, row := range rows {
			lines[i] = strings.Join(row, ",")
		}
		return strings.Join(lines, "\n"), nil
	case ".json":
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return string(data), nil
	}
}

// pdfText joins the plain text of every page.
func pdfText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	loader := documentloaders.NewPDF(f, info.Size())
	pages, err := loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.PageContent
	}
	return strings.Join(texts, "\n"), nil
}

// xlsxText renders each sheet as a "Sheet: name" line followed by its rows,
// cells comma separated.
func xlsxText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("reading workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sheet)
		for _, row := range rows {
			b.WriteString(strings.Join(row, ","))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// docxText returns the document paragraphs one per line. Runs inside a
// paragraph are concatenated; tabs and breaks are kept.
func docxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("reading docx: %w", err)
	}
	defer archive.Close()

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("reading docx: %s not found", docxBody)
	}
	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
