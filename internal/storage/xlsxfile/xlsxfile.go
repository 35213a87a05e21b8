// Package xlsxfile writes the cleaned table as an Excel workbook.
package xlsxfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"poclean/internal/storage"
	"poclean/pkg/records"
)

// Kind is the output kind this package registers.
const Kind = "xlsx"

// DefaultSheet is used when the config names no sheet.
const DefaultSheet = "Cleaned"

// numFmtTwoDecimals is Excel's built-in "0.00" format.
const numFmtTwoDecimals = 2

func init() {
	storage.Register(Kind, func(_ context.Context, cfg storage.Config) (storage.Writer, error) {
		return New(cfg)
	})
}

// Writer streams rows into a single worksheet. Numbers stay numeric cells;
// money columns get a two-decimal number format.
type Writer struct {
	path   string
	sheet  string
	render storage.Renderer
}

func New(cfg storage.Config) (*Writer, error) {
	if cfg.Path == "" {
		return nil, errors.New("xlsxfile: output path is required")
	}
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Writer{path: cfg.Path, sheet: sheet, render: storage.NewRenderer(cfg.Money)}, nil
}

func (w *Writer) Write(ctx context.Context, tbl records.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}
	sw, err := f.NewStreamWriter(w.sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]any, len(tbl.Columns))
	for i, c := range tbl.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]any, len(tbl.Columns))
	for i, rec := range tbl.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, col := range tbl.Columns {
			row[j] = w.cell(col, rec[col], money)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	return storage.WriteFileAtomic(w.path, func(out io.Writer) error {
		_, err := f.WriteTo(out)
		return err
	})
}

// cell keeps numbers numeric so the workbook stays sortable.
func (w *Writer) cell(col string, v any, moneyStyle int) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int64:
		return t
	case float64:
		if w.render.IsMoney(col) {
			return excelize.Cell{StyleID: moneyStyle, Value: t}
		}
		return t
	default:
		return w.render.Cell(col, v)
	}
}
