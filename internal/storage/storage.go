// Package storage holds the output side of the pipeline: a Writer contract,
// a kind-keyed factory registry that concrete backends join from init, and
// helpers shared by the file backends.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"poclean/pkg/records"
)

// Writer persists a cleaned table. Implementations write all or nothing.
type Writer interface {
	Write(ctx context.Context, tbl records.Table) error
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind string
	Path string

	// Money lists columns rendered with exactly two decimals.
	Money []string

	// Comma is the CSV delimiter; zero means ','.
	Comma rune

	// Sheet is the worksheet name for workbook output.
	Sheet string
}

// Factory builds a Writer for cfg.
type Factory func(ctx context.Context, cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds or replaces the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New returns a Writer for cfg.Kind.
func New(ctx context.Context, cfg Config) (Writer, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported output.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Renderer turns typed cells into output text.
type Renderer struct {
	money map[string]struct{}
}

// NewRenderer returns a Renderer that prints the money columns with two
// decimals.
func NewRenderer(money []string) Renderer {
	m := make(map[string]struct{}, len(money))
	for _, c := range money {
		m[c] = struct{}{}
	}
	return Renderer{money: m}
}

// IsMoney reports whether col is a money column.
func (r Renderer) IsMoney(col string) bool {
	_, ok := r.money[col]
	return ok
}

// Cell renders v. nil is "", int64 is decimal, float64 uses the shortest
// exact form except in money columns.
func (r Renderer) Cell(col string, v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		if r.IsMoney(col) {
			return strconv.FormatFloat(t, 'f', 2, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
