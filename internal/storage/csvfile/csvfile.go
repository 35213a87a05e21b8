// Package csvfile writes the cleaned table as a comma separated file.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"poclean/internal/storage"
	"poclean/pkg/records"
)

// Kind is the output kind this package registers.
const Kind = "csv"

func init() {
	storage.Register(Kind, func(_ context.Context, cfg storage.Config) (storage.Writer, error) {
		return New(cfg)
	})
}

// Writer renders every row in column order, header first.
type Writer struct {
	path   string
	comma  rune
	render storage.Renderer
}

// New validates cfg and returns a Writer.
func New(cfg storage.Config) (*Writer, error) {
	if cfg.Path == "" {
		return nil, errors.New("csvfile: output path is required")
	}
	return &Writer{path: cfg.Path, comma: cfg.Comma, render: storage.NewRenderer(cfg.Money)}, nil
}

func (w *Writer) Write(ctx context.Context, tbl records.Table) error {
	return storage.WriteFileAtomic(w.path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if w.comma != 0 {
			cw.Comma = w.comma
		}
		if err := cw.Write(tbl.Columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		row := make([]string, len(tbl.Columns))
		for i, rec := range tbl.Rows {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for j, col := range tbl.Columns {
				row[j] = w.render.Cell(col, rec[col])
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
