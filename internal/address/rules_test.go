package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRules(t *testing.T) *Rules {
	t.Helper()
	r, err := DefaultConfig().Compile()
	require.NoError(t, err)
	return r
}

func TestZipFromLine2(t *testing.T) {
	r := mustRules(t)
	tests := []struct {
		name string
		in   Address
		want Address
	}{
		{
			name: "canadian_code_with_space",
			in:   Address{Line2: "123 MAIN ST M1M 4Y3"},
			want: Address{Line2: "123 MAIN ST", Zip: "M1M 4Y3"},
		},
		{
			name: "us_zip_plus_four",
			in:   Address{Line2: "SUITE 9 90210-1234", Zip: "old"},
			want: Address{Line2: "SUITE 9", Zip: "90210-1234"},
		},
		{
			name: "code_mid_field_leaves_single_space",
			in:   Address{Line2: "123 MAIN ST M1M 4Y3 APT"},
			want: Address{Line2: "123 MAIN ST APT", Zip: "M1M 4Y3"},
		},
		{
			name: "no_match_unchanged",
			in:   Address{Line2: "PO BOX 12", Zip: "12345"},
			want: Address{Line2: "PO BOX 12", Zip: "12345"},
		},
		{
			name: "lowercase_not_matched",
			in:   Address{Line2: "unit m1m 4y3"},
			want: Address{Line2: "unit m1m 4y3"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.ZipFromLine2(tc.in))
		})
	}
}

func TestZipFromCity_StripsCountryAndOverridesLine2(t *testing.T) {
	r := mustRules(t)

	a := Address{Line2: "UNIT 4 L1V 2P8", City: "PICKERING CANADA L1W 3X7"}
	a = r.ZipFromLine2(a)
	a = r.ZipFromCity(a)

	assert.Equal(t, "UNIT 4", a.Line2)
	assert.Equal(t, "PICKERING", a.City)
	assert.Equal(t, "L1W 3X7", a.Zip, "city code wins over the line 2 code")
}

func TestProvinceRules(t *testing.T) {
	r := mustRules(t)

	t.Run("from_city", func(t *testing.T) {
		got := r.ProvinceFromCity(Address{City: "TORONTO ONTARIO"})
		assert.Equal(t, Address{City: "TORONTO", State: "ONTARIO"}, got)
	})

	t.Run("whole_word_only", func(t *testing.T) {
		in := Address{City: "BOSTON"}
		assert.Equal(t, in, r.ProvinceFromCity(in))
	})

	t.Run("case_sensitive", func(t *testing.T) {
		in := Address{City: "Toronto Ontario"}
		assert.Equal(t, in, r.ProvinceFromCity(in))
	})

	t.Run("line2_overrides_city", func(t *testing.T) {
		a := Address{Line2: "RR 2 QC", City: "GATINEAU ON"}
		a = r.ProvinceFromCity(a)
		a = r.ProvinceFromLine2(a)
		assert.Equal(t, Address{Line2: "RR 2", City: "GATINEAU", State: "QC"}, a)
	})
}

func TestCityFromLine2_OverridesCity(t *testing.T) {
	r := mustRules(t)
	got := r.CityFromLine2(Address{Line2: "1200 RUE MONTREAL", City: "LAVAL"})
	assert.Equal(t, Address{Line2: "1200 RUE", City: "MONTREAL"}, got)
}

func TestCanonicalizeProvince(t *testing.T) {
	r := mustRules(t)
	for in, want := range map[string]string{
		"ONTARIO": "ON",
		"ONT":     "ON",
		"QUEBEC":  "QB",
		"BC":      "BC",
		"NY":      "NY",
		"":        "",
	} {
		assert.Equal(t, want, r.CanonicalizeProvince(Address{State: in}).State, in)
	}
}

func TestInferCountry(t *testing.T) {
	r := mustRules(t)
	tests := []struct {
		name string
		in   Address
		want string
	}{
		{"comma_in_state", Address{State: "QC,"}, CountryCanada},
		{"cd_state", Address{State: "CD"}, CountryCanada},
		{"us_state", Address{State: "NY"}, CountryUS},
		{"empty_state", Address{}, CountryUS},
		{"city_forces_canada", Address{State: "NY", City: "CANADA"}, CountryCanada},
		{"city_containing_token_only", Address{State: "NY", City: "NEW CANADA"}, CountryUS},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.InferCountry(tc.in).Country)
		})
	}
}

func TestNormalizeZip(t *testing.T) {
	r := mustRules(t)
	tests := []struct {
		in, want string
	}{
		{"1234", "01234"},
		{"90210", "90210"},
		{"12", ""},
		{"90210-1234", "90210-1234"},
		{"M1M 4Y3", "M1M4Y3"},
		{"M1M4Y3", "M1M4Y3"},
		{"902101", ""},
		{"A1B2", ""},
		{"ABCD", ""},
		{"12 34", "01234"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, r.NormalizeZip(Address{Zip: tc.in}).Zip)
		})
	}
}

func TestRuleOrder(t *testing.T) {
	r := mustRules(t)
	var names []string
	for _, rule := range r.RowRules() {
		names = append(names, rule.Name)
	}
	assert.Equal(t, []string{
		"zip_from_line2", "zip_from_city", "province_from_city",
		"province_from_line2", "city_from_line2",
	}, names)

	names = names[:0]
	for _, rule := range r.SetRules() {
		names = append(names, rule.Name)
	}
	assert.Equal(t, []string{"canonicalize_province", "infer_country", "normalize_zip"}, names)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Config{PostalPattern: "("}.Compile()
	assert.ErrorContains(t, err, "postal pattern")

	_, err = Config{ZipPattern: "[a-"}.Compile()
	assert.ErrorContains(t, err, "zip pattern")
}

func TestCompile_CustomTables(t *testing.T) {
	r, err := Config{
		Provinces:       []string{"ALBERTA", "AB"},
		Cities:          []string{"CALGARY"},
		ProvinceAliases: map[string]string{"ALBERTA": "AB"},
	}.Compile()
	require.NoError(t, err)

	a := Address{Line2: "CALGARY", City: "DOWNTOWN ALBERTA"}
	for _, rule := range r.RowRules() {
		a = rule.Apply(a)
	}
	a = r.CanonicalizeProvince(a)
	assert.Equal(t, "CALGARY", a.City)
	assert.Equal(t, "AB", a.State)
	assert.Equal(t, "", a.Line2)
}
