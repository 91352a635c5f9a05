// Package sheet turns the first worksheet of an uploaded workbook into entries.
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"vizintel/api/internal/common"
	"vizintel/api/internal/model"
)

// ContentTypes lists the accepted upload media types. Only OOXML workbooks
// are read; legacy BIFF .xls files are refused.
var ContentTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// emptyHeader keys columns whose header cell is blank.
const emptyHeader = "__EMPTY"

// ole2Magic opens every compound document, which is how .xls files are stored.
var ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Accepts reports whether contentType names a spreadsheet.
func Accepts(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return ContentTypes[strings.TrimSpace(strings.ToLower(mediaType))]
}

// ParseFirstSheet reads the first worksheet. The first row supplies the keys;
// every later row with at least one value becomes one entry.
func ParseFirstSheet(r io.Reader) ([]model.Entry, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	if bytes.HasPrefix(body, ole2Magic) {
		return nil, common.Invalid("Legacy .xls workbooks are not supported; save the file as .xlsx")
	}
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, common.Invalid("Unreadable spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.Invalid("Spreadsheet has no sheets")
	}
	name := sheets[0]

	formatted, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	entries := []model.Entry{}
	if len(formatted) == 0 {
		return entries, nil
	}
	width := 0
	for _, row := range formatted {
		width = max(width, len(row))
	}
	headers := headerKeys(formatted[0], width)

	for i := 1; i < len(formatted); i++ {
		var entry model.Entry
		for col, text := range formatted[i] {
			if text == "" {
				continue
			}
			rawText := text
			if i < len(raw) && col < len(raw[i]) {
				rawText = raw[i][col]
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
			cellType, _ := f.GetCellType(name, cell)
			entry = append(entry, model.Field{Key: headers[col], Value: cellValue(cellType, text, rawText)})
		}
		if len(entry) > 0 {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// headerKeys trims header cells and suffixes repeats with _1, _2 and so on.
// Blank or missing headers up to width are keyed __EMPTY, __EMPTY_1, ...
func headerKeys(row []string, width int) []string {
	keys := make([]string, max(width, len(row)))
	seen := map[string]int{}
	for i := range keys {
		h := emptyHeader
		if i < len(row) {
			if trimmed := strings.TrimSpace(row[i]); trimmed != "" {
				h = trimmed
			}
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			keys[i] = h + "_" + strconv.Itoa(n+1)
			continue
		}
		seen[h] = 0
		keys[i] = h
	}
	return keys
}

func cellValue(cellType excelize.CellType, text, raw string) any {
	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(text, "TRUE")
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return text
	}
	switch text {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return text
}
