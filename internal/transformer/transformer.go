// Package transformer defines the record-set transformation contract used by
// the cleansing pipeline and a small helper for per-row work.
//
// Transformers follow value semantics: Apply must not mutate the records it
// receives. It returns a new slice holding new (or untouched) records.
package transformer

import (
	"golang.org/x/sync/errgroup"

	"poclean/pkg/records"
)

// Transformer maps a record set to a new record set.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Func adapts an ordinary function to the Transformer interface.
type Func func([]records.Record) []records.Record

func (f Func) Apply(in []records.Record) []records.Record { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

// MapRows applies fn to every record and returns the results in input order.
// fn receives a record it may not mutate and must return the replacement.
//
// With workers <= 1 the work runs on the calling goroutine. Otherwise rows are
// split into contiguous chunks processed by at most workers goroutines; fn
// must then be free of shared mutable state.
func MapRows(in []records.Record, workers int, fn func(records.Record) records.Record) []records.Record {
	if in == nil {
		return nil
	}
	out := make([]records.Record, len(in))
	if workers <= 1 || len(in) < 2*workers {
		for i, r := range in {
			out[i] = fn(r)
		}
		return out
	}

	chunk := (len(in) + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < len(in); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(in))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				out[i] = fn(in[i])
			}
			return nil
		})
	}
	_ = g.Wait() // fn cannot fail
	return out
}
