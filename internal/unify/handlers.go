package unify

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Handler extracts the text of one file.
type Handler func(path string) (string, error)

// DefaultHandlers returns the extractor for every supported format.
func DefaultHandlers() map[Format]Handler {
	return map[Format]Handler{
		FormatText:        ReadText,
		FormatWord:        ReadWord,
		FormatSpreadsheet: ReadSpreadsheet,
		FormatPDF:         ReadPDF,
	}
}

// ReadText returns the file as UTF-8. Content that is not valid UTF-8 is
// decoded as Latin-1, which accepts every byte sequence.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(b) {
		return string(b), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("latin-1 decode: %w", err)
	}
	return string(out), nil
}

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// ReadWord returns the paragraphs of a .docx document joined by newlines.
// Paragraphs that hold only whitespace are skipped.
func ReadWord(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	paragraphs, err := wordParagraphs(rc)
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n"), nil
}

func wordParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		cur        strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := cur.String(); strings.TrimSpace(text) != "" {
					paragraphs = append(paragraphs, text)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return paragraphs, nil
}

// Sheet is one worksheet of a spreadsheet.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadSpreadsheet renders every sheet of an .xlsx or .xls workbook.
func ReadSpreadsheet(path string) (string, error) {
	var (
		sheets []Sheet
		err    error
	)
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		sheets, err = readXLS(path)
	} else {
		sheets, err = readXLSX(path)
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, s := range sheets {
		fmt.Fprintf(&b, "\n### Sheet: %s ###\n%s\n", s.Name, RenderTable(s.Rows))
	}
	return b.String(), nil
}

func readXLSX(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

func readXLS(path string) ([]Sheet, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, err
	}

	var sheets []Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Rows: rows})
	}
	return sheets, nil
}

var cellReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", "")

// RenderTable aligns rows into columns. The first row is the header.
func RenderTable(rows [][]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return "(empty sheet)"
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		cells := make([]string, width)
		for i, c := range r {
			cells[i] = cellReplacer.Replace(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

// ReadPDF returns the plain text of every page joined by newlines.
func ReadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
