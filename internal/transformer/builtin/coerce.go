package builtin

import (
	"math"
	"strings"
	"time"

	"poclean/internal/schema"
	"poclean/internal/transformer"
	"poclean/pkg/records"
)

// DateLayout is the canonical MM/DD/YYYY form written for date columns.
const DateLayout = "01/02/2006"

// dateLayouts are tried in order. Four-digit year forms come before the
// two-digit ones so "01/02/2006" is never read as year 20 with trailing text.
var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1-2-2006",
	"1-2-06",
	"2006/1/2",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
}

// Coerce converts numeric, money and date columns to their typed form.
// Unparsable values become nil; Coerce never fails. Values that already carry
// the target type are accepted, which keeps the transform idempotent.
type Coerce struct {
	Registry *schema.Registry
	Workers  int
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	if c.Registry == nil {
		return in
	}
	numeric, money, dates := c.Registry.Numeric, c.Registry.Money, c.Registry.Dates
	return transformer.MapRows(in, c.Workers, func(r records.Record) records.Record {
		out := r.Clone()
		for _, col := range numeric {
			if v, ok := out[col]; ok {
				out[col] = CoerceNumber(v)
			}
		}
		for _, col := range money {
			if v, ok := out[col]; ok {
				out[col] = CoerceMoney(v)
			}
		}
		for _, col := range dates {
			if v, ok := out[col]; ok {
				out[col] = CoerceDate(v)
			}
		}
		return out
	})
}

// CoerceNumber returns v as int64 when it is integral and as float64
// otherwise. It returns nil for anything that does not parse as a number.
func CoerceNumber(v any) any {
	var f float64
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		f = t
	case string:
		var ok bool
		if f, ok = parseNumber(t); !ok {
			return nil
		}
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// CoerceMoney parses v and rounds it half away from zero to two decimals.
func CoerceMoney(v any) any {
	switch n := CoerceNumber(v).(type) {
	case int64:
		return float64(n)
	case float64:
		return math.Round(n*100) / 100
	default:
		return nil
	}
}

// CoerceDate reformats v to DateLayout. Unparsable or empty input yields nil.
func CoerceDate(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.Format(DateLayout)
	case string:
		if tm, ok := ParseDate(t); ok {
			return tm.Format(DateLayout)
		}
	}
	return nil
}

// ParseDate tries every accepted layout against s.
func ParseDate(s string) (time.Time, bool) {
	if HasEdgeSpace(s) {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EnumScrub blanks enum cells that hold a value outside the permitted set.
// Records are kept; only the offending cell changes.
type EnumScrub struct {
	Registry *schema.Registry
	Workers  int
}

func (e EnumScrub) Apply(in []records.Record) []records.Record {
	if e.Registry == nil || len(e.Registry.Enums) == 0 {
		return in
	}
	cols := e.Registry.EnumColumns()
	return transformer.MapRows(in, e.Workers, func(r records.Record) records.Record {
		out := r.Clone()
		for _, col := range cols {
			v, ok := out[col]
			if !ok {
				continue
			}
			if !e.Registry.Permitted(col, asString(v)) {
				out[col] = ""
			}
		}
		return out
	})
}
