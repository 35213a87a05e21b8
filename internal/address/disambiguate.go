package address

import (
	"fmt"
	"sync/atomic"

	"poclean/internal/schema"
	"poclean/internal/transformer"
	"poclean/pkg/records"
)

// Disambiguator runs the compiled rules over a record set. Per-record rules
// may run on several workers; set rules always run afterwards in one ordered
// pass. Hits, when set, receives how many records each rule changed.
type Disambiguator struct {
	Rules   *Rules
	Workers int
	Hits    func(map[string]int)
}

func (d Disambiguator) Apply(in []records.Record) []records.Record {
	if d.Rules == nil || in == nil {
		return in
	}
	f := d.Rules.Fields()
	rowRules := d.Rules.RowRules()
	setRules := d.Rules.SetRules()
	counts := make([]atomic.Int64, len(rowRules)+len(setRules))

	staged := transformer.MapRows(in, d.Workers, func(r records.Record) records.Record {
		before := Project(r, f)
		a := before
		for i, rule := range rowRules {
			next := rule.Apply(a)
			if next != a {
				counts[i].Add(1)
			}
			a = next
		}
		if a == before {
			return r
		}
		out := r.Clone()
		writeBack(out, f, before, a)
		return out
	})

	out := make([]records.Record, len(staged))
	for i, r := range staged {
		before := Project(r, f)
		a := before
		for j, rule := range setRules {
			next := rule.Apply(a)
			if next != a {
				counts[len(rowRules)+j].Add(1)
			}
			a = next
		}
		// staged[i] may still be the caller's record, so never write to it.
		rec := r.Clone()
		writeBack(rec, f, before, a)
		rec[f.Country] = a.Country
		out[i] = rec
	}

	if d.Hits != nil {
		hits := make(map[string]int, len(counts))
		for i, rule := range rowRules {
			hits[rule.Name] = int(counts[i].Load())
		}
		for j, rule := range setRules {
			hits[rule.Name] = int(counts[len(rowRules)+j].Load())
		}
		d.Hits(hits)
	}
	return out
}

// Project reads the address columns of r. Missing and nil cells read as "".
func Project(r records.Record, f schema.AddressFields) Address {
	return Address{
		Line2:   text(r[f.Line2]),
		City:    text(r[f.City]),
		State:   text(r[f.State]),
		Zip:     text(r[f.Zip]),
		Country: text(r[f.Country]),
	}
}

// writeBack stores only the fields that changed so untouched nil cells stay nil.
func writeBack(r records.Record, f schema.AddressFields, before, after Address) {
	if after.Line2 != before.Line2 {
		r[f.Line2] = after.Line2
	}
	if after.City != before.City {
		r[f.City] = after.City
	}
	if after.State != before.State {
		r[f.State] = after.State
	}
	if after.Zip != before.Zip {
		r[f.Zip] = after.Zip
	}
	if after.Country != before.Country {
		r[f.Country] = after.Country
	}
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
