// Package address relocates postal codes, provinces and city names that were
// typed into the wrong vendor address field, then derives the country and
// repairs the ZIP.
//
// The work is an ordered list of pure rules over an Address value. Later
// rules overwrite fields set by earlier ones (last writer wins), so the order
// returned by Rules.RowRules is part of the contract.
package address

import (
	"regexp"
	"strings"

	"poclean/internal/schema"
)

// Address is the projection of one record's vendor address fields.
type Address struct {
	Line2   string
	City    string
	State   string
	Zip     string
	Country string
}

// Rule is one named, pure step.
type Rule struct {
	Name  string
	Apply func(Address) Address
}

// Rules is the compiled, read-only rule set. It is safe for concurrent use.
type Rules struct {
	postal   *regexp.Regexp
	zipFull  *regexp.Regexp
	province *regexp.Regexp
	city     *regexp.Regexp

	aliases        map[string]string
	canadianStates map[string]struct{}
	countryToken   string
	canada         string
	fallback       string

	fields schema.AddressFields
}

// Fields returns the record columns the rules read and write.
func (r *Rules) Fields() schema.AddressFields { return r.fields }

// RowRules returns the per-record extraction steps in their fixed order.
func (r *Rules) RowRules() []Rule {
	return []Rule{
		{Name: "zip_from_line2", Apply: r.ZipFromLine2},
		{Name: "zip_from_city", Apply: r.ZipFromCity},
		{Name: "province_from_city", Apply: r.ProvinceFromCity},
		{Name: "province_from_line2", Apply: r.ProvinceFromLine2},
		{Name: "city_from_line2", Apply: r.CityFromLine2},
	}
}

// SetRules returns the steps that run once over the whole record set after
// every record went through RowRules.
func (r *Rules) SetRules() []Rule {
	return []Rule{
		{Name: "canonicalize_province", Apply: r.CanonicalizeProvince},
		{Name: "infer_country", Apply: r.InferCountry},
		{Name: "normalize_zip", Apply: r.NormalizeZip},
	}
}

// extract returns the first match of re in s and s with every match removed
// and its spaces squeezed.
func extract(re *regexp.Regexp, s string) (match, rest string, ok bool) {
	if s == "" {
		return "", s, false
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		return "", s, false
	}
	return s[loc[0]:loc[1]], squeeze(re.ReplaceAllString(s, "")), true
}

// ZipFromLine2 moves a postal code found in address line 2 into Zip.
func (r *Rules) ZipFromLine2(a Address) Address {
	if m, rest, ok := extract(r.postal, a.Line2); ok {
		a.Line2, a.Zip = rest, m
	}
	return a
}

// ZipFromCity moves a postal code found in the city into Zip and drops the
// country token from what is left. It overrides ZipFromLine2.
func (r *Rules) ZipFromCity(a Address) Address {
	if m, rest, ok := extract(r.postal, a.City); ok {
		if r.countryToken != "" {
			rest = squeeze(strings.ReplaceAll(rest, r.countryToken, ""))
		}
		a.City, a.Zip = rest, m
	}
	return a
}

// ProvinceFromCity moves a province name or code found in the city into State.
func (r *Rules) ProvinceFromCity(a Address) Address {
	if m, rest, ok := extract(r.province, a.City); ok {
		a.City, a.State = rest, m
	}
	return a
}

// ProvinceFromLine2 moves a province found in address line 2 into State.
// It overrides ProvinceFromCity.
func (r *Rules) ProvinceFromLine2(a Address) Address {
	if m, rest, ok := extract(r.province, a.Line2); ok {
		a.Line2, a.State = rest, m
	}
	return a
}

// CityFromLine2 moves a known city name found in address line 2 into City,
// replacing whatever was there.
func (r *Rules) CityFromLine2(a Address) Address {
	if m, rest, ok := extract(r.city, a.Line2); ok {
		a.Line2, a.City = rest, m
	}
	return a
}

// CanonicalizeProvince maps long province spellings to their short code.
func (r *Rules) CanonicalizeProvince(a Address) Address {
	if code, ok := r.aliases[a.State]; ok {
		a.State = code
	}
	return a
}

// InferCountry sets Country from State, then lets a city equal to the
// country token force Canada.
func (r *Rules) InferCountry(a Address) Address {
	_, listed := r.canadianStates[a.State]
	if listed || strings.Contains(a.State, ",") {
		a.Country = r.canada
	} else {
		a.Country = r.fallback
	}
	if r.countryToken != "" && a.City == r.countryToken {
		a.Country = r.canada
	}
	return a
}

// NormalizeZip removes spaces and keeps the result when it is a recognized
// code. A four-digit value lost its leading zero and gets it back; anything
// else is cleared.
func (r *Rules) NormalizeZip(a Address) Address {
	z := strings.ReplaceAll(a.Zip, " ", "")
	switch {
	case r.zipFull.MatchString(z):
	case len(z) == 4 && isDigits(z):
		z = "0" + z
	default:
		z = ""
	}
	a.Zip = z
	return a
}

// squeeze trims s and collapses inner runs of whitespace to one space.
func squeeze(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
