// Package records defines the row model shared by readers, transformers and
// writers.
package records

// Record is one row of a table keyed by column name. Readers fill cells with
// raw strings (nil for an absent cell); transformers may replace them with
// int64 or float64 values. nil is the missing sentinel throughout.
type Record map[string]any

// Clone returns a shallow copy of r. Cell values are immutable scalars, so a
// shallow copy is enough for stages that must not touch their input.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the cell as a string. Missing cells and nil yield "".
// Non-string values yield "" as well.
func (r Record) String(col string) string {
	if s, ok := r[col].(string); ok {
		return s
	}
	return ""
}

// Empty reports whether the cell is absent, nil or the empty string.
func (r Record) Empty(col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}

// Table is an ordered record set together with its column order.
type Table struct {
	Columns []string
	Rows    []Record
}

// HasColumn reports whether col is part of the table header.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// CloneRows returns a copy of rows where every record has been cloned.
func CloneRows(rows []Record) []Record {
	if rows == nil {
		return nil
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
