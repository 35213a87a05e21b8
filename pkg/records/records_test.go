package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordClone_Independent(t *testing.T) {
	orig := Record{"A": "x", "B": int64(2), "C": nil}
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp["A"] = "changed"
	assert.Equal(t, "x", orig["A"], "mutating the clone must not touch the original")
	assert.Nil(t, Record(nil).Clone())
}

func TestRecordEmpty(t *testing.T) {
	r := Record{"s": "", "n": nil, "v": "1", "i": int64(0)}
	tests := []struct {
		col  string
		want bool
	}{
		{"s", true},
		{"n", true},
		{"missing", true},
		{"v", false},
		{"i", false},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Empty(tt.col))
		})
	}
}

func TestRecordString(t *testing.T) {
	r := Record{"s": "abc", "i": int64(3)}
	assert.Equal(t, "abc", r.String("s"))
	assert.Equal(t, "", r.String("i"))
	assert.Equal(t, "", r.String("missing"))
}

func TestTableHasColumn(t *testing.T) {
	tbl := Table{Columns: []string{"UNIQUE ID", "VENDOR ZIP"}}
	assert.True(t, tbl.HasColumn("VENDOR ZIP"))
	assert.False(t, tbl.HasColumn("VENDOR COUNTRY"))
}

func TestCloneRows(t *testing.T) {
	rows := []Record{{"a": "1"}, {"a": "2"}}
	cp := CloneRows(rows)
	cp[1]["a"] = "9"
	assert.Equal(t, "2", rows[1]["a"])
	assert.Nil(t, CloneRows(nil))
}
