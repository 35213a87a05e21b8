package builtin

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"poclean/internal/schema"
	"poclean/pkg/records"
)

// Violation categories, used as metric tags and in Report.Counts.
const (
	CategoryMissingRequired = "missing_required"
	CategoryInvalidDate     = "invalid_date"
	CategoryInvalidNumeric  = "invalid_numeric"
	CategoryInvalidZIP      = "invalid_zip"
)

var (
	rawDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}$`)
	rawZIPPattern  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// Violation points at one offending cell. Row is the 1-based data row (the
// header is not counted). For missing required fields Column lists every
// missing column, comma separated.
type Violation struct {
	Row    int
	ID     string
	Column string
	Value  string
}

// Report is the advisory outcome of a validation pass.
type Report struct {
	MissingRequired []Violation
	InvalidDates    []Violation
	InvalidNumeric  map[string][]Violation
	InvalidZIP      []Violation
}

// Total returns the number of violations across all categories.
func (r Report) Total() int {
	n := len(r.MissingRequired) + len(r.InvalidDates) + len(r.InvalidZIP)
	for _, v := range r.InvalidNumeric {
		n += len(v)
	}
	return n
}

// Counts returns violations per category.
func (r Report) Counts() map[string]int {
	numeric := 0
	for _, v := range r.InvalidNumeric {
		numeric += len(v)
	}
	return map[string]int{
		CategoryMissingRequired: len(r.MissingRequired),
		CategoryInvalidDate:     len(r.InvalidDates),
		CategoryInvalidNumeric:  numeric,
		CategoryInvalidZIP:      len(r.InvalidZIP),
	}
}

// Violations returns the entries of one category. Numeric violations are
// ordered by column name, then by row.
func (r Report) Violations(category string) []Violation {
	switch category {
	case CategoryMissingRequired:
		return r.MissingRequired
	case CategoryInvalidDate:
		return r.InvalidDates
	case CategoryInvalidZIP:
		return r.InvalidZIP
	case CategoryInvalidNumeric:
		cols := make([]string, 0, len(r.InvalidNumeric))
		for c := range r.InvalidNumeric {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		var out []Violation
		for _, c := range cols {
			out = append(out, r.InvalidNumeric[c]...)
		}
		return out
	}
	return nil
}

// Summary renders a short multi-line description, one line per category and
// one per numeric column with failures.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "records missing required fields: %d\n", len(r.MissingRequired))
	fmt.Fprintf(&b, "invalid date formats: %d\n", len(r.InvalidDates))
	cols := make([]string, 0, len(r.InvalidNumeric))
	for c := range r.InvalidNumeric {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		fmt.Fprintf(&b, "invalid numeric values in %s: %d\n", c, len(r.InvalidNumeric[c]))
	}
	fmt.Fprintf(&b, "invalid ZIP codes: %d", len(r.InvalidZIP))
	return b.String()
}

// Validate reports violations on the raw record set. It never drops or
// changes records: Apply returns its input as-is and hands the Report to the
// optional sink.
type Validate struct {
	Registry *schema.Registry
	Report   func(Report)
}

func (v Validate) Apply(in []records.Record) []records.Record {
	rep := v.Check(in)
	if v.Report != nil {
		v.Report(rep)
	}
	return in
}

// Check is the read-only validation pass.
func (v Validate) Check(in []records.Record) Report {
	rep := Report{InvalidNumeric: map[string][]Violation{}}
	reg := v.Registry
	if reg == nil {
		return rep
	}
	typed := reg.Typed()
	zipCol := reg.Address.Zip

	for i, r := range in {
		row := i + 1
		id := asString(r[reg.ID])

		var missing []string
		for _, col := range reg.Required {
			if r.Empty(col) {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			rep.MissingRequired = append(rep.MissingRequired, Violation{
				Row: row, ID: id, Column: strings.Join(missing, ","),
			})
		}

		for _, col := range reg.Dates {
			val, ok := r[col]
			if !ok {
				continue
			}
			if s := asString(val); !rawDatePattern.MatchString(s) {
				rep.InvalidDates = append(rep.InvalidDates, Violation{Row: row, ID: id, Column: col, Value: s})
			}
		}

		for _, col := range typed {
			val, ok := r[col]
			if !ok || isNumber(val) {
				continue
			}
			rep.InvalidNumeric[col] = append(rep.InvalidNumeric[col], Violation{
				Row: row, ID: id, Column: col, Value: asString(val),
			})
		}

		if val, ok := r[zipCol]; ok {
			if s := asString(val); !rawZIPPattern.MatchString(s) {
				rep.InvalidZIP = append(rep.InvalidZIP, Violation{Row: row, ID: id, Column: zipCol, Value: s})
			}
		}
	}
	return rep
}

// isNumber reports whether v is already numeric or parses as a number.
// nil and "" do not.
func isNumber(v any) bool {
	switch t := v.(type) {
	case int, int64, float64:
		return true
	case string:
		_, ok := parseNumber(t)
		return ok
	default:
		return false
	}
}
