// Package export renders screening results as downloadable CSV or XLSX
// files and archives them to blob storage.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/patrol/internal/workflow"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat resolves a format name. Empty input selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Header is the column row shared by both formats.
var Header = []string{"商品名", "リスク判定", "理由", "詳細分析(AI弁護士)", "元ファイル名", "判定日時"}

// TimeLayout formats the screened-at column.
const TimeLayout = "2006/01/02 15:04:05"

const sheetName = "判定結果"

var bom = []byte{0xEF, 0xBB, 0xBF}

// Options selects the format and row filter of an export.
type Options struct {
	Format    Format
	RiskyOnly bool
	Location  *time.Location
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Rows        int
	Data        []byte
}

// FileName returns the download name for an export created at at.
func FileName(format Format, riskyOnly bool, at time.Time) string {
	scope := "all"
	if riskyOnly {
		scope = "risky_detailed"
	}
	return fmt.Sprintf("ip_check_%s_%d.%s", scope, at.UnixMilli(), format)
}

// Filter returns results in export order. riskyOnly keeps flagged levels
// and drops Low and Error.
func Filter(results []workflow.Result, riskyOnly bool) []workflow.Result {
	if !riskyOnly {
		return results
	}
	out := make([]workflow.Result, 0, len(results))
	for _, r := range results {
		if r.Risk.Flagged() {
			out = append(out, r)
		}
	}
	return out
}

// Render filters results and encodes them in the requested format.
// An empty filtered set returns ErrNoRows.
func Render(results []workflow.Result, opts Options, at time.Time) (*File, error) {
	if opts.Format == "" {
		opts.Format = FormatCSV
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	rows := Filter(results, opts.RiskyOnly)
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	var buf bytes.Buffer
	var err error

	switch opts.Format {
	case FormatCSV:
		err = WriteCSV(&buf, rows, opts.Location)
	case FormatXLSX:
		err = WriteXLSX(&buf, rows, opts.Location)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, opts.Format)
	}
	if err != nil {
		return nil, err
	}

	return &File{
		Name:        FileName(opts.Format, opts.RiskyOnly, at),
		ContentType: opts.Format.ContentType(),
		Rows:        len(rows),
		Data:        buf.Bytes(),
	}, nil
}

func record(r workflow.Result, loc *time.Location) []string {
	return []string{
		r.Text,
		r.Risk.Label(),
		r.Reason,
		r.RefinedReason,
		r.Origin,
		r.ScreenedAt.In(loc).Format(TimeLayout),
	}
}

// WriteCSV writes a UTF-8 BOM, the header, and one row per result. Every
// field is quoted so spreadsheet tools never reinterpret product names.
func WriteCSV(w io.Writer, rows []workflow.Result, loc *time.Location) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	if err := writeQuoted(w, Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writeQuoted(w, record(r, loc)); err != nil {
			return err
		}
	}
	return nil
}

func writeQuoted(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, rows []workflow.Result, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Header))
	if err := f.SetCellStyle(sheetName, "A1", last+"1", style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := record(r, loc)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 48); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}
	if err := f.SetColWidth(sheetName, "C", "D", 60); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
