package builtin

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"poclean/internal/transformer"
	"poclean/pkg/records"
)

// mojibakeNBSP is a UTF-8 no-break space that went through a Latin-1 decode
// on its way into the export.
const mojibakeNBSP = "Â\u00a0"

// Normalize cleans every string cell: Latin-1 mojibake of the no-break space
// is repaired, the text is brought to Unicode NFKC form (which folds NBSP and
// other compatibility spaces to ASCII space) and edge whitespace is trimmed.
// Non-string cells are left unchanged.
type Normalize struct {
	Workers int
}

func (n Normalize) Apply(in []records.Record) []records.Record {
	return transformer.MapRows(in, n.Workers, func(r records.Record) records.Record {
		out := r.Clone()
		for k, v := range out {
			if s, ok := v.(string); ok {
				out[k] = CleanText(s)
			}
		}
		return out
	})
}

// CleanText applies the Normalize rules to a single string.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	if strings.Contains(s, mojibakeNBSP) {
		s = strings.ReplaceAll(s, mojibakeNBSP, " ")
	}
	if !isASCII(s) {
		s = norm.NFKC.String(s)
	}
	return strings.TrimSpace(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Fill replaces absent or empty cells with a per-column default.
type Fill struct {
	Defaults map[string]string
}

func (f Fill) Apply(in []records.Record) []records.Record {
	if len(f.Defaults) == 0 {
		return in
	}
	return transformer.MapRows(in, 1, func(r records.Record) records.Record {
		out := r.Clone()
		for col, def := range f.Defaults {
			if out.Empty(col) {
				out[col] = def
			}
		}
		return out
	})
}

// StripChars removes every rune in Chars from the string cells of Columns
// and trims what is left. It keeps free-text fields from breaking delimited
// output downstream.
type StripChars struct {
	Columns []string
	Chars   string
}

func (s StripChars) Apply(in []records.Record) []records.Record {
	if len(s.Columns) == 0 || s.Chars == "" {
		return in
	}
	return transformer.MapRows(in, 1, func(r records.Record) records.Record {
		out := r.Clone()
		for _, col := range s.Columns {
			v, ok := out[col].(string)
			if !ok || !strings.ContainsAny(v, s.Chars) {
				continue
			}
			out[col] = strings.TrimSpace(strings.Map(func(c rune) rune {
				if strings.ContainsRune(s.Chars, c) {
					return -1
				}
				return c
			}, v))
		}
		return out
	})
}
