// Package xlsx reads a purchase-order export saved as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"poclean/pkg/records"
)

// Options selects the sheet and renames headers.
type Options struct {
	// Sheet names the worksheet to read; empty means the first sheet.
	Sheet string

	HeaderMap map[string]string

	Logger *slog.Logger
}

// Parser reads the first row of a sheet as the header and every following
// non-blank row as a record.
type Parser struct{ opt Options }

func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse loads the workbook from r. Excel drops trailing empty cells, so short
// rows are padded with nil; rows that carry values beyond the header are
// skipped and counted.
func (p *Parser) Parse(r io.Reader) (records.Table, int, error) {
	log := p.opt.Logger
	if log == nil {
		log = slog.Default()
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return records.Table{}, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := p.opt.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return records.Table{}, 0, fmt.Errorf("workbook has no sheets")
		}
		sheet = list[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return records.Table{}, 0, fmt.Errorf("open sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return records.Table{}, 0, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		return records.Table{}, 0, fmt.Errorf("sheet %q has no header row", sheet)
	}
	head, err := rows.Columns()
	if err != nil {
		return records.Table{}, 0, fmt.Errorf("read header of sheet %q: %w", sheet, err)
	}
	headers := make([]string, len(head))
	for i, h := range head {
		h = strings.TrimSpace(h)
		if m, ok := p.opt.HeaderMap[h]; ok {
			h = m
		}
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		headers[i] = h
	}

	tbl := records.Table{Columns: headers}
	skipped := 0
	for line := 2; rows.Next(); line++ {
		cells, err := rows.Columns()
		if err != nil {
			log.Warn("skipping xlsx row", "sheet", sheet, "row", line, "error", err)
			skipped++
			continue
		}
		if blank(cells) {
			continue
		}
		if extra := cells[min(len(cells), len(headers)):]; !blank(extra) {
			log.Warn("skipping xlsx row", "sheet", sheet, "row", line, "expected_fields", len(headers), "got_fields", len(cells))
			skipped++
			continue
		}
		rec := make(records.Record, len(headers))
		for i, col := range headers {
			if i < len(cells) && cells[i] != "" {
				rec[col] = cells[i]
			} else {
				rec[col] = nil
			}
		}
		tbl.Rows = append(tbl.Rows, rec)
	}
	if err := rows.Error(); err != nil {
		return records.Table{}, skipped, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return tbl, skipped, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
