// Package catalog loads the recommendable items from a CSV source.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"recommender/internal/domain"
)

// Columns maps catalog fields to CSV header names. Matching is case-insensitive.
type Columns struct {
	Name    string   `yaml:"name"`
	Brand   string   `yaml:"brand"`
	URL     string   `yaml:"url"`
	Accords []string `yaml:"accords"` // ranked, most prominent first
}

// DefaultColumns matches the fragrance dataset layout.
func DefaultColumns() Columns {
	return Columns{
		Name:    "Perfume",
		Brand:   "Brand",
		URL:     "url",
		Accords: []string{"mainaccord1", "mainaccord2", "mainaccord3", "mainaccord4", "mainaccord5"},
	}
}

// Options controls how a catalog source is decoded.
type Options struct {
	Encoding string // utf-8 (default), iso-8859-1, windows-1252
	Columns  Columns
}

// Load reads the catalog file at path.
func Load(path string, opts Options) ([]domain.CatalogItem, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewEmptyCatalog("catalog source not found", err)
		}
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	items, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return items, nil
}

// Read parses a catalog from r. A cell that is not valid in the declared
// encoding fails the whole read with the offending line number.
func Read(r io.Reader, opts Options) ([]domain.CatalogItem, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		r = dec.Reader(r)
	}
	cols := opts.Columns
	if cols.Name == "" {
		cols = DefaultColumns()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewEmptyCatalog("catalog source is empty", nil)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkEncoding(header, dec != nil); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	layout, err := resolveLayout(header, cols)
	if err != nil {
		return nil, err
	}

	var items []domain.CatalogItem
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if err := checkEncoding(row, dec != nil); err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		accords := make([]string, len(layout.accords))
		for i, col := range layout.accords {
			accords[i] = cell(row, col)
		}
		items = append(items, domain.NewCatalogItem(
			cell(row, layout.name),
			cell(row, layout.brand),
			cell(row, layout.url),
			accords,
		))
	}
	if len(items) == 0 {
		return nil, domain.NewEmptyCatalog("catalog source has no rows", nil)
	}
	return items, nil
}

type layout struct {
	name, brand, url int
	accords          []int
}

func resolveLayout(header []string, cols Columns) (layout, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(cleanCell(h))
		if i == 0 {
			key = strings.TrimPrefix(key, "\ufeff")
		}
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}
	find := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := pos[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}
	l := layout{
		name:    find(cols.Name),
		brand:   find(cols.Brand),
		url:     find(cols.URL),
		accords: make([]int, len(cols.Accords)),
	}
	if l.name < 0 {
		return layout{}, fmt.Errorf("missing name column %q in header", cols.Name)
	}
	for i, a := range cols.Accords {
		l.accords[i] = find(a)
	}
	return l, nil
}

// cell returns the trimmed value at col, or "" when the column or value is absent.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return cleanCell(row[col])
}

func cleanCell(s string) string {
	return strings.TrimSpace(s)
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported catalog encoding %q", name)
	}
}

// checkEncoding rejects invalid UTF-8 and characters a charmap decoder could not map.
func checkEncoding(fields []string, decoded bool) error {
	for i, f := range fields {
		if !utf8.ValidString(f) {
			return fmt.Errorf("field %d: malformed utf-8", i+1)
		}
		if decoded && strings.ContainsRune(f, utf8.RuneError) {
			return fmt.Errorf("field %d: byte not representable in catalog encoding", i+1)
		}
	}
	return nil
}
