// Package sheets turns an uploaded spreadsheet into the text placed in a
// user's context slot: the first sheet's rows as a pretty-printed JSON array
// of objects keyed by the header row.
package sheets

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dmitrijs2005/healthchat/internal/common"
)

// Kind is the parser selected for an upload.
type Kind int

const (
	KindUnknown Kind = iota
	KindXLSX
	KindCSV
)

var acceptedContentType = regexp.MustCompile(`spreadsheet|excel|vnd\.openxmlformats-officedocument\.spreadsheetml\.sheet|csv`)

// Detect picks a parser from the file name and the declared content type.
// The extension wins when both are present.
func Detect(fileName, contentType string) Kind {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return KindXLSX
	case ".csv":
		return KindCSV
	}
	ct := strings.ToLower(contentType)
	if !acceptedContentType.MatchString(ct) {
		return KindUnknown
	}
	if strings.Contains(ct, "csv") {
		return KindCSV
	}
	return KindXLSX
}

// Document is the extraction result.
type Document struct {
	Rows int
	Text string
}

// Extract parses r according to kind. Unknown kinds and files that cannot
// be parsed as the detected kind yield common.ErrUnsupportedFile.
func Extract(kind Kind, r io.Reader) (*Document, error) {
	var (
		records [][]string
		err     error
	)
	switch kind {
	case KindXLSX:
		records, err = readXLSX(r)
	case KindCSV:
		records, err = readCSV(r)
	default:
		return nil, common.ErrUnsupportedFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnsupportedFile, err)
	}

	rows := toRows(records)
	text, err := render(rows)
	if err != nil {
		return nil, err
	}
	return &Document{Rows: len(rows), Text: text}, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheetsList := f.GetSheetList()
	if len(sheetsList) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheetsList[0])
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

type field struct {
	key   string
	value string
}

// row keeps header order when encoded.
type row []field

func (r row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// headers names every column. Blank header cells become __EMPTY, __EMPTY_1,
// ...; repeated names get a numeric suffix.
func headers(first []string, width int) []string {
	out := make([]string, width)
	seen := make(map[string]int, width)
	empty := 0
	for i := 0; i < width; i++ {
		var h string
		if i < len(first) {
			h = strings.TrimSpace(first[i])
		}
		if h == "" {
			h = "__EMPTY"
			if empty > 0 {
				h = fmt.Sprintf("__EMPTY_%d", empty)
			}
			empty++
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

// toRows drops the header record and blank rows; empty cells are omitted.
func toRows(records [][]string) []row {
	if len(records) == 0 {
		return []row{}
	}
	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	names := headers(records[0], width)

	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		var r row
		for i, cell := range rec {
			if cell == "" {
				continue
			}
			r = append(r, field{key: names[i], value: cell})
		}
		if len(r) == 0 {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

func render(rows []row) (string, error) {
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
