package builtin

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"poclean/pkg/records"
)

func mk(id any, fields map[string]any) records.Record {
	r := records.Record{"UNIQUE ID": id}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func TestDeDupKeepFirst(t *testing.T) {
	in := []records.Record{
		mk("1", map[string]any{"reason": "A"}),
		mk("1", map[string]any{"reason": "B"}),
		mk("2", map[string]any{"reason": "C"}),
	}
	d := DeDup{Keys: []string{"UNIQUE ID"}, Policy: "keep-first"}
	got := d.Apply(in)
	want := []records.Record{
		mk("1", map[string]any{"reason": "A"}),
		mk("2", map[string]any{"reason": "C"}),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keep-first: got %#v want %#v", got, want)
	}
}

func TestDeDupDefaultPolicyIsKeepFirst(t *testing.T) {
	in := []records.Record{
		mk(int64(5), map[string]any{"n": 1}),
		mk(int64(5), map[string]any{"n": 2}),
	}
	got := DeDup{Keys: []string{"UNIQUE ID"}}.Apply(in)
	assert.Equal(t, []records.Record{in[0]}, got)
}

func TestDeDupKeepLast(t *testing.T) {
	in := []records.Record{
		mk("1", map[string]any{"reason": "A"}),
		mk("2", map[string]any{"reason": "C"}),
		mk("1", map[string]any{"reason": "B"}),
	}
	d := DeDup{Keys: []string{"UNIQUE ID"}, Policy: "keep-last"}
	got := d.Apply(in)
	want := []records.Record{
		mk("2", map[string]any{"reason": "C"}),
		mk("1", map[string]any{"reason": "B"}),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keep-last: got %#v want %#v", got, want)
	}
}

func TestDeDupMostComplete(t *testing.T) {
	in := []records.Record{
		mk("1", map[string]any{"reason": ""}),
		mk("1", map[string]any{"reason": "B", "code": 1}),
		mk("2", map[string]any{"reason": "C"}),
	}
	d := DeDup{Keys: []string{"UNIQUE ID"}, Policy: "most-complete"}
	got := d.Apply(in)
	want := []records.Record{
		mk("1", map[string]any{"reason": "B", "code": 1}),
		mk("2", map[string]any{"reason": "C"}),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("most-complete: got %#v want %#v", got, want)
	}
}

/*
TestDeDupPassthroughKeepsPosition verifies that records without the key column
are kept where they were instead of being moved to the end.
*/
func TestDeDupPassthroughKeepsPosition(t *testing.T) {
	in := []records.Record{
		mk("1", nil),
		{"other": "no key"},
		mk("1", nil),
		mk("2", nil),
	}
	got := DeDup{Keys: []string{"UNIQUE ID"}}.Apply(in)
	assert.Equal(t, []records.Record{in[0], in[1], in[3]}, got)
}

func TestDeDupNilIDsCollapse(t *testing.T) {
	in := []records.Record{mk(nil, map[string]any{"n": 1}), mk(nil, map[string]any{"n": 2})}
	got := DeDup{Keys: []string{"UNIQUE ID"}}.Apply(in)
	assert.Equal(t, []records.Record{in[0]}, got)
}

/*
TestDeDupUniqueAndFirstWins checks the two output properties on a larger set:
identifiers are distinct and each survivor is the first occurrence.
*/
func TestDeDupUniqueAndFirstWins(t *testing.T) {
	var in []records.Record
	for i := 0; i < 500; i++ {
		in = append(in, records.Record{"UNIQUE ID": strconv.Itoa(i % 37), "seq": i})
	}
	var dropped int
	got := DeDup{Keys: []string{"UNIQUE ID"}, Dropped: func(n int) { dropped = n }}.Apply(in)

	assert.Len(t, got, 37)
	assert.Equal(t, 500-37, dropped)
	seen := map[string]bool{}
	for i, r := range got {
		id := r.String("UNIQUE ID")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Equal(t, i, r["seq"], "survivor must be the first occurrence")
	}
}

func TestDeDupNoKeysIsNoop(t *testing.T) {
	in := []records.Record{mk("1", nil), mk("1", nil)}
	assert.Equal(t, in, DeDup{}.Apply(in))
}
