package items

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies a source file format.
type Format string

// Supported source formats.
const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// Parser converts a source file into rows of cells. The first row is the header.
type Parser interface {
	Format() Format
	CanParse(src Source) bool
	Rows(data []byte, enc Encoding) ([][]string, error)
}

// Registry selects a parser for a source. Parsers are tried in
// registration order.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry over the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// DefaultRegistry returns a registry with the XLSX, TSV, and CSV parsers.
// CSV accepts any remaining text source.
func DefaultRegistry() *Registry {
	return NewRegistry(xlsxParser{}, tsvParser{}, csvParser{})
}

// Detect returns the first parser that accepts src.
func (r *Registry) Detect(src Source) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(src) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src.Name)
}

type csvParser struct{}

func (csvParser) Format() Format { return FormatCSV }

func (csvParser) CanParse(src Source) bool {
	if hasExtension(src.Name, ".csv", ".txt") {
		return true
	}
	if hasContentType(src.ContentType, "text/csv", "application/csv", "text/plain") {
		return true
	}
	return src.Name == "" && !isZip(src.Data)
}

func (csvParser) Rows(data []byte, enc Encoding) ([][]string, error) {
	return readDelimited(data, enc, ',')
}

type tsvParser struct{}

func (tsvParser) Format() Format { return FormatTSV }

func (tsvParser) CanParse(src Source) bool {
	return hasExtension(src.Name, ".tsv") ||
		hasContentType(src.ContentType, "text/tab-separated-values")
}

func (tsvParser) Rows(data []byte, enc Encoding) ([][]string, error) {
	return readDelimited(data, enc, '\t')
}

func readDelimited(data []byte, enc Encoding, delimiter rune) ([][]string, error) {
	decoded, err := Decode(data, enc)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", len(rows)+1, err)
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

type xlsxParser struct{}

func (xlsxParser) Format() Format { return FormatXLSX }

func (xlsxParser) CanParse(src Source) bool {
	if hasExtension(src.Name, ".xlsx") {
		return true
	}
	if hasContentType(src.ContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") {
		return true
	}
	return isZip(src.Data)
}

// Rows reads the first sheet. Encoding is ignored; XLSX text is always UTF-8.
func (xlsxParser) Rows(data []byte, _ Encoding) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 0x03 && data[3] == 0x04
}

func hasExtension(name string, extensions ...string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func hasContentType(contentType string, types ...string) bool {
	lower := strings.ToLower(contentType)
	for _, t := range types {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
