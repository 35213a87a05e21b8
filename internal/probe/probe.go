// Package probe samples an input and compares its header row with the
// purchase-order column set. It is meant for onboarding a new export: the
// result lists the columns that line up, the ones that only match after
// normalization, and the ones that are missing, together with a header_map
// that makes the parser rename the near misses.
package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"poclean/internal/config"
	"poclean/internal/datasource"
	"poclean/internal/parser"
	"poclean/internal/schema"
)

// DefaultBytes is how much of a CSV input is sampled when Options.Bytes is 0.
const DefaultBytes = 64 << 10

// ErrNoHeader is returned when the sample has no header row.
var ErrNoHeader = errors.New("probe: input has no header row")

// Options control sampling.
type Options struct {
	// Name is the input path or URL. Its extension helps format detection.
	Name string
	// Format is csv, xlsx or auto (the default).
	Format string
	// Bytes caps the CSV sample.
	Bytes int
	// Comma is the CSV delimiter; zero means ','.
	Comma rune
	// Sheet selects the workbook sheet; empty means the first one.
	Sheet string
}

// Match pairs a source header with the registry column it stands for.
type Match struct {
	Header string `json:"header"`
	Column string `json:"column"`
	// Exact is false when the header only matches after normalization.
	Exact bool `json:"exact"`
}

// Result is the outcome of a probe.
type Result struct {
	Format  string   `json:"format"`
	Headers []string `json:"headers"`
	Matches []Match  `json:"matches"`
	// Unknown lists source headers that match no column.
	Unknown []string `json:"unknown,omitempty"`
	// Missing lists registry columns absent from the input.
	Missing []string `json:"missing,omitempty"`
	// MissingRequired is the subset of Missing that validation requires.
	MissingRequired []string `json:"missing_required,omitempty"`
	// HeaderMap renames every inexact match to its column.
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// OK reports whether every required column was found.
func (r Result) OK() bool { return len(r.MissingRequired) == 0 }

// Probe reads the header row of src and matches it against reg.
func Probe(ctx context.Context, src datasource.Source, reg *schema.Registry, opt Options) (Result, error) {
	n := opt.Bytes
	if n <= 0 {
		n = DefaultBytes
	}

	var head []byte
	if sn, ok := src.(datasource.Sniffer); ok {
		var err error
		if head, err = sn.Peek(ctx, n); err != nil {
			return Result{}, fmt.Errorf("sample input: %w", err)
		}
	}

	format := strings.ToLower(opt.Format)
	if format == "" || format == parser.FormatAuto {
		format = parser.Detect(opt.Name, head)
	}

	var (
		headers []string
		err     error
	)
	switch format {
	case parser.FormatCSV:
		if head == nil {
			head, err = readPrefix(ctx, src, n)
			if err != nil {
				return Result{}, err
			}
		}
		headers, err = csvHeader(head, opt.Comma)
	case parser.FormatXLSX:
		headers, err = xlsxHeader(ctx, src, opt.Sheet)
	default:
		return Result{}, fmt.Errorf("probe: unsupported format %q", format)
	}
	if err != nil {
		return Result{}, err
	}

	res := MatchHeaders(headers, reg)
	res.Format = format
	return res, nil
}

// MatchHeaders compares headers with the registry columns. Exact matches
// win; the rest are compared by their normalized key.
func MatchHeaders(headers []string, reg *schema.Registry) Result {
	res := Result{Headers: headers, HeaderMap: map[string]string{}}

	byKey := make(map[string]string, len(reg.Columns))
	exact := make(map[string]bool, len(reg.Columns))
	for _, c := range reg.Columns {
		byKey[normalizeFieldName(c)] = c
		exact[c] = true
	}

	found := make(map[string]bool, len(reg.Columns))
	for _, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case exact[h] && !found[h]:
			found[h] = true
			res.Matches = append(res.Matches, Match{Header: h, Column: h, Exact: true})
		default:
			col, ok := byKey[normalizeFieldName(h)]
			if !ok || found[col] {
				res.Unknown = append(res.Unknown, h)
				continue
			}
			found[col] = true
			res.Matches = append(res.Matches, Match{Header: h, Column: col})
			res.HeaderMap[h] = col
		}
	}

	required := make(map[string]bool, len(reg.Required))
	for _, c := range reg.Required {
		required[c] = true
	}
	for _, c := range reg.Columns {
		if found[c] {
			continue
		}
		res.Missing = append(res.Missing, c)
		if required[c] {
			res.MissingRequired = append(res.MissingRequired, c)
		}
	}
	if len(res.HeaderMap) == 0 {
		res.HeaderMap = nil
	}
	return res
}

// Suggest returns a copy of p whose source options carry r.HeaderMap merged
// over any mapping p already has.
func Suggest(p config.Pipeline, r Result) config.Pipeline {
	if len(r.HeaderMap) == 0 {
		return p
	}
	opts := make(config.Options, len(p.Source.Options)+1)
	for k, v := range p.Source.Options {
		opts[k] = v
	}
	hm := map[string]any{}
	for k, v := range p.Source.Options.StringMap("header_map") {
		hm[k] = v
	}
	keys := make([]string, 0, len(r.HeaderMap))
	for k := range r.HeaderMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		hm[k] = r.HeaderMap[k]
	}
	opts["header_map"] = hm
	p.Source.Options = opts
	return p
}

func readPrefix(ctx context.Context, src datasource.Source, n int) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("sample input: %w", err)
	}
	return b, nil
}

// csvHeader reads the first record of sample. A sample cut inside the
// header row is still read as far as it goes.
func csvHeader(sample []byte, comma rune) ([]string, error) {
	if comma == 0 {
		comma = ','
	}
	r := csv.NewReader(bytes.NewReader(sample))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	h, err := r.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return h, nil
}

func xlsxHeader(ctx context.Context, src datasource.Source, sheet string) ([]string, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, ErrNoHeader
	}
	return rows.Columns()
}

// normalizeFieldName folds header text to a comparison key: lower case,
// accents stripped, runs of space, dash, dot and underscore collapsed to one
// underscore, everything else outside [a-z0-9] dropped.
func normalizeFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
