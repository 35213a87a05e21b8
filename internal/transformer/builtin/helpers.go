package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace. It is a
// cheap pre-check that lets hot paths skip strings.TrimSpace.
func HasEdgeSpace(s string) bool {
	n := len(s)
	if n == 0 {
		return false
	}
	b0, b1 := s[0], s[n-1]
	return b0 == ' ' || b0 == '\t' || b0 == '\n' || b0 == '\r' ||
		b1 == ' ' || b1 == '\t' || b1 == '\n' || b1 == '\r'
}

// asString converts common cell types to string without going through
// fmt.Sprint; falls back to fmt.Sprint for uncommon types.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(DateLayout)
	default:
		return fmt.Sprint(t)
	}
}

// parseNumber parses s as a finite decimal number. Surrounding whitespace is
// ignored; NaN and infinities are rejected.
func parseNumber(s string) (float64, bool) {
	if HasEdgeSpace(s) {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
