// Package items turns uploaded listing files into the immutable work items
// a screening run classifies.
package items

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/patrol/pkg/formatting"
)

// UnknownText replaces empty cells in the screened column.
const UnknownText = "不明な商品名"

// DefaultMaxTextLength is the rune limit applied when Options.MaxTextLength is zero.
const DefaultMaxTextLength = 500

// HeaderCandidates are matched, in order, against header cells when no
// column is selected explicitly. A header matches when it contains the candidate.
var HeaderCandidates = []string{"商品名", "Name", "Product", "名称"}

// Item is one unit of screening work. ID is its position across all sources
// of a run. Text is already truncated.
type Item struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Origin string `json:"origin"`
}

// Source is a raw uploaded file.
type Source struct {
	Name        string
	ContentType string
	Data        []byte
}

// Options controls how sources are decoded and which column is screened.
type Options struct {
	Encoding      Encoding `json:"encoding"`
	Column        string   `json:"column"`
	MaxTextLength int      `json:"max_text_length"`
}

// Load parses every source with the default registry and concatenates the
// resulting items in source order.
func Load(sources []Source, opts Options) ([]Item, error) {
	return DefaultRegistry().Load(sources, opts)
}

// Load parses every source and concatenates the resulting items in source
// order. IDs are positional across all sources.
func (r *Registry) Load(sources []Source, opts Options) ([]Item, error) {
	enc, err := ParseEncoding(string(opts.Encoding))
	if err != nil {
		return nil, err
	}

	var out []Item
	for _, src := range sources {
		p, err := r.Detect(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}

		rows, err := p.Rows(src.Data, enc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}

		if len(rows) == 0 {
			continue
		}

		col, err := selectColumn(rows[0], opts.Column)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}

		for _, row := range rows[1:] {
			if blankRow(row) {
				continue
			}
			var cell string
			if col < len(row) {
				cell = row[col]
			}
			out = append(out, newItem(len(out), cell, src.Name, opts.MaxTextLength))
		}
	}

	if len(out) == 0 {
		return nil, ErrNoItems
	}

	return out, nil
}

// FromTexts builds items directly from listing text, bypassing file parsing.
func FromTexts(texts []string, origin string, maxLen int) ([]Item, error) {
	if len(texts) == 0 {
		return nil, ErrNoItems
	}

	out := make([]Item, len(texts))
	for i, text := range texts {
		out[i] = newItem(i, text, origin, maxLen)
	}
	return out, nil
}

func newItem(id int, text, origin string, maxLen int) Item {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = UnknownText
	}

	return Item{
		ID:     id,
		Text:   formatting.Truncate(text, maxLen),
		Origin: origin,
	}
}

// selectColumn resolves the screened column from an explicit header name,
// zero-based index, or spreadsheet column letter (A, B, ... AA), in that
// order, or detects it from HeaderCandidates. Detection falls back to the
// first column.
func selectColumn(header []string, column string) (int, error) {
	column = strings.TrimSpace(column)

	if column != "" {
		for i, h := range header {
			if strings.TrimSpace(h) == column {
				return i, nil
			}
		}
		if idx, err := strconv.Atoi(column); err == nil && idx >= 0 && idx < len(header) {
			return idx, nil
		}
		if n, err := excelize.ColumnNameToNumber(column); err == nil && n <= len(header) {
			return n - 1, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	for i, h := range header {
		for _, candidate := range HeaderCandidates {
			if strings.Contains(h, candidate) {
				return i, nil
			}
		}
	}

	return 0, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
