// Package urllist reads batches of URLs from text, CSV and XLSX files.
package urllist

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Stdin is the path that selects the stdin reader passed to Load.
const Stdin = "-"

// urlHeaders are header names recognised as the URL column, in preference order.
var urlHeaders = []string{"url", "website", "domain", "link"}

// Options configures table parsing.
type Options struct {
	// Column names the header of the URL column. Empty picks the first
	// recognised header, or column 0 when the table has none.
	Column string

	// SheetName selects the XLSX sheet; empty means the first sheet.
	SheetName string
}

// Load returns the URLs in path, in file order with duplicates removed.
// Files ending in .csv or .xlsx are read as tables; anything else, and
// stdin, as one URL per line with blank lines and # comments skipped.
func Load(path string, stdin io.Reader, opts Options) ([]string, error) {
	var (
		urls []string
		err  error
	)

	switch {
	case path == Stdin:
		urls, err = readLines(stdin)
	case strings.EqualFold(filepath.Ext(path), ".xlsx"):
		urls, err = readXLSX(path, opts)
	case strings.EqualFold(filepath.Ext(path), ".csv"):
		urls, err = readCSVFile(path, opts)
	default:
		urls, err = readTextFile(path)
	}
	if err != nil {
		return nil, err
	}

	urls = dedupe(urls)
	if len(urls) == 0 {
		return nil, eris.New("urllist: no urls found")
	}
	return urls, nil
}

func readTextFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "urllist: open file")
	}
	defer f.Close() //nolint:errcheck
	return readLines(f)
}

func readLines(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, eris.New("urllist: no input")
	}

	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, eris.Wrap(sc.Err(), "urllist: read lines")
}

func readCSVFile(path string, opts Options) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "urllist: open file")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true
	reader.Comment = '#'

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "urllist: read csv")
	}
	return urlColumn(rows, opts.Column)
}

func readXLSX(path string, opts Options) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "urllist: open xlsx")
	}

	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return urlColumn(rows, opts.Column)
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("urllist: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("urllist: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// urlColumn picks the URL column from a table and returns its non-empty cells.
func urlColumn(rows [][]string, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	idx, hasHeader := headerIndex(rows[0], column)
	if idx < 0 {
		return nil, eris.Errorf("urllist: column %q not found", column)
	}
	if hasHeader {
		rows = rows[1:]
	}

	var urls []string
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			urls = append(urls, v)
		}
	}
	return urls, nil
}

// headerIndex locates the URL column in the first row. It reports whether
// that row is a header.
func headerIndex(first []string, column string) (int, bool) {
	normalized := make([]string, len(first))
	for i, h := range first {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	if column != "" {
		return slices.Index(normalized, strings.ToLower(column)), true
	}
	for _, name := range urlHeaders {
		if i := slices.Index(normalized, name); i >= 0 {
			return i, true
		}
	}
	return 0, false
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
