package transformer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poclean/pkg/records"
)

// appendStep tags every record with its name so tests can observe ordering.
type appendStep string

func (s appendStep) Apply(in []records.Record) []records.Record {
	out := make([]records.Record, len(in))
	for i, r := range in {
		c := r.Clone()
		c["trace"] = c.String("trace") + string(s)
		out[i] = c
	}
	return out
}

func TestChain_AppliesInOrder(t *testing.T) {
	in := []records.Record{{"trace": ""}, {"trace": "x"}}
	out := Chain{appendStep("a"), appendStep("b"), appendStep("c")}.Apply(in)

	require.Len(t, out, 2)
	assert.Equal(t, "abc", out[0]["trace"])
	assert.Equal(t, "xabc", out[1]["trace"])
	assert.Equal(t, "", in[0]["trace"], "input records must not be mutated")
}

func TestChain_EmptyIsIdentity(t *testing.T) {
	in := []records.Record{{"a": "1"}}
	assert.Equal(t, in, Chain{}.Apply(in))
}

func TestFunc_Adapter(t *testing.T) {
	drop := Func(func(in []records.Record) []records.Record { return in[:0] })
	assert.Empty(t, Chain{drop}.Apply([]records.Record{{"a": 1}}))
}

func TestMapRows_PreservesOrder(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			in := make([]records.Record, 101)
			for i := range in {
				in[i] = records.Record{"i": int64(i)}
			}
			out := MapRows(in, workers, func(r records.Record) records.Record {
				c := r.Clone()
				c["double"] = c["i"].(int64) * 2
				return c
			})
			require.Len(t, out, len(in))
			for i, r := range out {
				assert.Equal(t, int64(i*2), r["double"])
				assert.NotContains(t, in[i], "double")
			}
		})
	}
}

func TestMapRows_Nil(t *testing.T) {
	assert.Nil(t, MapRows(nil, 4, func(r records.Record) records.Record { return r }))
}
