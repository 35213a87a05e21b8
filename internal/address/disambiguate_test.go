package address

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poclean/pkg/records"
)

func vendor(line2, city, state, zip any) records.Record {
	return records.Record{
		"VENDOR ADDRESS 2": line2,
		"VENDOR CITY":      city,
		"VENDOR STATE":     state,
		"VENDOR ZIP":       zip,
		"UNIQUE ID":        "U",
	}
}

/*
TestDisambiguator_Scenarios runs whole records through the row rules and the
set rules and checks the final vendor fields.
*/
func TestDisambiguator_Scenarios(t *testing.T) {
	d := Disambiguator{Rules: mustRules(t)}

	tests := []struct {
		name string
		in   records.Record
		want map[string]any
	}{
		{
			name: "postal_code_in_line2",
			in:   vendor("123 MAIN ST M1M 4Y3", "", "", ""),
			want: map[string]any{
				"VENDOR ADDRESS 2": "123 MAIN ST",
				"VENDOR ZIP":       "M1M4Y3",
				"VENDOR COUNTRY":   CountryUS,
			},
		},
		{
			name: "province_in_city",
			in:   vendor("", "TORONTO ONTARIO", "", "M5V 2T6"),
			want: map[string]any{
				"VENDOR CITY":    "TORONTO",
				"VENDOR STATE":   "ON",
				"VENDOR ZIP":     "M5V2T6",
				"VENDOR COUNTRY": CountryUS,
			},
		},
		{
			name: "state_with_comma_is_canada",
			in:   vendor("", "LAVAL", "QC,", "H7T 2P5"),
			want: map[string]any{
				"VENDOR STATE":   "QC,",
				"VENDOR COUNTRY": CountryCanada,
			},
		},
		{
			name: "city_canada_forces_country",
			in:   vendor("", "CANADA", "NY", "10001"),
			want: map[string]any{
				"VENDOR CITY":    "CANADA",
				"VENDOR COUNTRY": CountryCanada,
			},
		},
		{
			name: "us_zip_lost_leading_zero",
			in:   vendor("", "BOSTON", "MA", "2134"),
			want: map[string]any{
				"VENDOR ZIP":     "02134",
				"VENDOR COUNTRY": CountryUS,
			},
		},
		{
			name: "city_from_line2_and_zip_from_city",
			in:   vendor("55 RUE PRINCIPALE MONTREAL", "QUEBEC H2X 1Y4 CANADA", "", ""),
			want: map[string]any{
				"VENDOR ADDRESS 2": "55 RUE PRINCIPALE",
				"VENDOR CITY":      "MONTREAL",
				"VENDOR STATE":     "QB",
				"VENDOR ZIP":       "H2X1Y4",
			},
		},
		{
			name: "nil_cells",
			in:   vendor(nil, nil, nil, nil),
			want: map[string]any{
				"VENDOR ADDRESS 2": nil,
				"VENDOR ZIP":       nil,
				"VENDOR COUNTRY":   CountryUS,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.in.Clone()
			out := d.Apply([]records.Record{tc.in})
			require.Len(t, out, 1)
			for col, want := range tc.want {
				assert.Equal(t, want, out[0][col], col)
			}
			assert.Equal(t, before, tc.in, "input must not be mutated")
		})
	}
}

func TestDisambiguator_ParallelMatchesSequential(t *testing.T) {
	rules := mustRules(t)
	var in []records.Record
	for i := 0; i < 200; i++ {
		in = append(in, vendor(fmt.Sprintf("%d KING ST M1M 4Y3", i), "TORONTO ONT", "", ""))
	}
	seq := Disambiguator{Rules: rules}.Apply(in)
	par := Disambiguator{Rules: rules, Workers: 8}.Apply(in)
	assert.Equal(t, seq, par)
	assert.Equal(t, "ON", par[199]["VENDOR STATE"])
	assert.Equal(t, "199 KING ST", par[199]["VENDOR ADDRESS 2"])
}

func TestDisambiguator_Hits(t *testing.T) {
	var hits map[string]int
	d := Disambiguator{Rules: mustRules(t), Hits: func(h map[string]int) { hits = h }}
	d.Apply([]records.Record{
		vendor("123 MAIN ST M1M 4Y3", "", "", ""),
		vendor("", "TORONTO ONTARIO", "", ""),
		vendor("", "BOSTON", "MA", "02134"),
	})

	require.NotNil(t, hits)
	assert.Equal(t, 1, hits["zip_from_line2"])
	assert.Equal(t, 0, hits["zip_from_city"])
	assert.Equal(t, 1, hits["province_from_city"])
	assert.Equal(t, 1, hits["canonicalize_province"])
	assert.Equal(t, 3, hits["infer_country"])
	assert.Equal(t, 1, hits["normalize_zip"])
}

func TestDisambiguator_NilRulesIsNoop(t *testing.T) {
	in := []records.Record{vendor("a", "b", "c", "d")}
	assert.Equal(t, in, Disambiguator{}.Apply(in))
}
