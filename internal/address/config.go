package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"poclean/internal/schema"
)

// Default patterns and lookup tables for North American vendor addresses.
const (
	// DefaultPostalPattern finds a US ZIP (optionally +4) or one of the
	// Canadian postal-code spellings seen in the export.
	DefaultPostalPattern = `(\b\d{5}(-\d{4})?\b|[A-Z]\d[A-Z]\d[A-Z]\d|[A-Z]\d[A-Z]\s?\d[A-Z]\d|[A-Z]\d[A-Z]\s?[A-Z]\d|[A-Z]\d{4}|[A-Z]\d[A-Z]\s?\d[A-Z]\d|[A-Z]\d[A-Z]{2}\d{2})`

	// DefaultZipPattern decides whether a space-stripped ZIP is kept as is.
	// Only the start of the value is anchored for the Canadian forms.
	DefaultZipPattern = `^(?:\d{5}(?:-\d{4})?$|[A-Z]\d[A-Z] \d[A-Z]\d|[A-Z]\d[A-Z]\d[A-Z]\d|[A-Z]\d[A-Z] [A-Z]\d)`

	CountryCanada = "CANADA"
	CountryUS     = "UNITED STATES"
)

// Config is the data the disambiguator runs on. The zero value of any field
// means "use the default"; see DefaultConfig.
type Config struct {
	PostalPattern   string            `json:"postal_pattern,omitempty" yaml:"postal_pattern,omitempty"`
	ZipPattern      string            `json:"zip_pattern,omitempty" yaml:"zip_pattern,omitempty"`
	Provinces       []string          `json:"provinces,omitempty" yaml:"provinces,omitempty"`
	Cities          []string          `json:"cities,omitempty" yaml:"cities,omitempty"`
	ProvinceAliases map[string]string `json:"province_aliases,omitempty" yaml:"province_aliases,omitempty"`

	// CanadianStates are exact state values that mean Canada. A state that
	// contains a comma means Canada as well.
	CanadianStates []string `json:"canadian_states,omitempty" yaml:"canadian_states,omitempty"`

	// CountryToken is stripped from a city after a postal code was taken
	// from it, and a city equal to it forces Canada.
	CountryToken   string `json:"country_token,omitempty" yaml:"country_token,omitempty"`
	Canada         string `json:"canada,omitempty" yaml:"canada,omitempty"`
	DefaultCountry string `json:"default_country,omitempty" yaml:"default_country,omitempty"`

	Fields schema.AddressFields `json:"-" yaml:"-"`
}

// DefaultConfig returns the built-in tables for the purchase-order export.
func DefaultConfig() Config {
	return Config{
		PostalPattern: DefaultPostalPattern,
		ZipPattern:    DefaultZipPattern,
		Provinces:     []string{"ONTARIO", "QUEBEC", "ON", "ONT", "BC", "QC"},
		Cities:        []string{"MONTREAL", "PICKERING", "KANLOOPS"},
		ProvinceAliases: map[string]string{
			"ONTARIO": "ON",
			"ONT":     "ON",
			"QUEBEC":  "QB",
		},
		CanadianStates: []string{"CD"},
		CountryToken:   CountryCanada,
		Canada:         CountryCanada,
		DefaultCountry: CountryUS,
		Fields:         schema.PurchaseOrders().Address,
	}
}

// WithDefaults fills every unset field of c from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.PostalPattern == "" {
		c.PostalPattern = d.PostalPattern
	}
	if c.ZipPattern == "" {
		c.ZipPattern = d.ZipPattern
	}
	if len(c.Provinces) == 0 {
		c.Provinces = d.Provinces
	}
	if len(c.Cities) == 0 {
		c.Cities = d.Cities
	}
	if c.ProvinceAliases == nil {
		c.ProvinceAliases = d.ProvinceAliases
	}
	if len(c.CanadianStates) == 0 {
		c.CanadianStates = d.CanadianStates
	}
	if c.CountryToken == "" {
		c.CountryToken = d.CountryToken
	}
	if c.Canada == "" {
		c.Canada = d.Canada
	}
	if c.DefaultCountry == "" {
		c.DefaultCountry = d.DefaultCountry
	}
	if c.Fields == (schema.AddressFields{}) {
		c.Fields = d.Fields
	}
	return c
}

// Compile builds the immutable rule set. Word lists are turned into
// case-sensitive whole-word alternations in the order given.
func (c Config) Compile() (*Rules, error) {
	c = c.WithDefaults()

	postal, err := regexp.Compile(c.PostalPattern)
	if err != nil {
		return nil, fmt.Errorf("address: postal pattern: %w", err)
	}
	zipFull, err := regexp.Compile(c.ZipPattern)
	if err != nil {
		return nil, fmt.Errorf("address: zip pattern: %w", err)
	}
	province, err := wordPattern(c.Provinces)
	if err != nil {
		return nil, fmt.Errorf("address: provinces: %w", err)
	}
	city, err := wordPattern(c.Cities)
	if err != nil {
		return nil, fmt.Errorf("address: cities: %w", err)
	}

	aliases := make(map[string]string, len(c.ProvinceAliases))
	for k, v := range c.ProvinceAliases {
		aliases[k] = v
	}
	states := make(map[string]struct{}, len(c.CanadianStates))
	for _, s := range c.CanadianStates {
		states[s] = struct{}{}
	}

	return &Rules{
		postal:         postal,
		zipFull:        zipFull,
		province:       province,
		city:           city,
		aliases:        aliases,
		canadianStates: states,
		countryToken:   c.CountryToken,
		canada:         c.Canada,
		fallback:       c.DefaultCountry,
		fields:         c.Fields,
	}, nil
}

func wordPattern(words []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil, errors.New("empty word list")
	}
	return regexp.Compile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}
