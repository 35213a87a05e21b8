// Package builtin contains the reusable record-set transformers of the
// cleansing pipeline.
//
// DeDup collapses duplicate records by a configured key and chooses a winner
// according to a policy:
//
//   - "keep-first"   : keep the earliest occurrence (default)
//   - "keep-last"    : keep the latest occurrence
//   - "most-complete": keep the record that has the most non-empty fields;
//     ties break by "keep-last"
//
// Winners keep the position of the record that won, and records that lack a
// key column pass through where they were, so output order always follows
// input order.
//
// Keys: a record's key is the concatenation of the configured fields as
// strings (nil -> "\x00"). Run DeDup after Coerce so that types and empty
// values are consistent.
package builtin

import (
	"strings"

	"github.com/zeebo/xxh3"

	"poclean/pkg/records"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the field names that form the identifier, e.g. ["UNIQUE ID"].
	Keys []string

	// Policy selects the winner among duplicates: "keep-first", "keep-last",
	// or "most-complete".
	Policy string

	// PreferFields optionally lists fields that weigh more heavily in
	// "most-complete" selection.
	PreferFields []string

	// Dropped, when set, receives the number of records removed.
	Dropped func(n int)
}

type dedupSlot struct {
	key   string
	index int
	score int
}

// Apply returns a new slice holding the winning record of each key plus every
// unkeyed record, in input order.
func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-first"
	}

	prefer := make(map[string]struct{}, len(d.PreferFields))
	for _, f := range d.PreferFields {
		prefer[f] = struct{}{}
	}

	// Buckets are keyed by the xxh3 hash; each bucket keeps the full key so
	// that a hash collision never merges two distinct identifiers.
	buckets := make(map[uint64][]dedupSlot, len(in))
	keep := make([]bool, len(in))
	var b strings.Builder

	for i, r := range in {
		key, ok := d.keyOf(r, &b)
		if !ok {
			keep[i] = true
			continue
		}
		h := xxh3.HashString(key)
		slots := buckets[h]
		pos := -1
		for j := range slots {
			if slots[j].key == key {
				pos = j
				break
			}
		}
		cur := dedupSlot{key: key, index: i}
		if policy == "most-complete" {
			cur.score = scoreOf(r, prefer)
		}
		if pos < 0 {
			buckets[h] = append(slots, cur)
			keep[i] = true
			continue
		}
		prev := slots[pos]
		switch policy {
		case "keep-first":
			continue
		case "most-complete":
			if cur.score < prev.score {
				continue
			}
		}
		keep[prev.index] = false
		keep[i] = true
		slots[pos] = cur
	}

	out := make([]records.Record, 0, len(in))
	for i, r := range in {
		if keep[i] {
			out = append(out, r)
		}
	}
	if d.Dropped != nil {
		d.Dropped(len(in) - len(out))
	}
	return out
}

func (d DeDup) keyOf(r records.Record, b *strings.Builder) (string, bool) {
	b.Reset()
	for i, k := range d.Keys {
		v, ok := r[k]
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if v == nil {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(asString(v))
	}
	return b.String(), true
}

// scoreOf counts non-empty values; PreferFields add a bonus.
func scoreOf(r records.Record, prefer map[string]struct{}) int {
	score, bonus := 0, 0
	for k, v := range r {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		score++
		if _, ok := prefer[k]; ok {
			bonus++
		}
	}
	return score*10 + bonus
}
