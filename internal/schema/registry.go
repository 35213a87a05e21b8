// Package schema declares the fixed purchase-order column set and how each
// column is classified. A Registry is built once at start-up and then shared
// read-only by every stage.
package schema

import (
	"fmt"
	"sort"
)

// Kind classifies a column for normalization.
type Kind uint8

const (
	KindText Kind = iota
	KindNumeric
	KindMoney
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindMoney:
		return "money"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// Purchase-order column names referenced by code.
const (
	ColRecordType       = "RECORD TYPE"
	ColPONumber         = "PURCHASE ORDER NUMBER"
	ColRequisition      = "REQUISITION NUMBER"
	ColInputDate        = "INPUT DATE"
	ColPOTypeCode       = "PO TYPE CODE"
	ColPOCategoryCode   = "PO CATEGORY CODE"
	ColVendorAddress2   = "VENDOR ADDRESS 2"
	ColVendorCity       = "VENDOR CITY"
	ColVendorState      = "VENDOR STATE"
	ColVendorZip        = "VENDOR ZIP"
	ColVendorCountry    = "VENDOR COUNTRY"
	ColItemDescription  = "ITEM DESCRIPTION"
	ColUniqueID         = "UNIQUE ID"
	DefaultMissingValue = "UNKNOWN"
)

// AddressFields names the columns the address disambiguator reads and writes.
type AddressFields struct {
	Line2   string
	City    string
	State   string
	Zip     string
	Country string
}

// Registry is the static column classification. Treat a built Registry as
// immutable; stages receive it by pointer and only read from it.
type Registry struct {
	// Columns is the canonical column order of the export.
	Columns []string

	Required    []string
	Numeric     []string
	Money       []string
	Dates       []string
	Enums       map[string][]string
	Defaults    map[string]string
	StripCommas []string

	// ID is the identifier column used for de-duplication.
	ID string

	Address AddressFields

	kinds    map[string]Kind
	enumSets map[string]map[string]struct{}
}

// PurchaseOrders returns the registry for the purchase-order export.
func PurchaseOrders() *Registry {
	r := &Registry{
		Columns: []string{
			ColRecordType,
			ColPONumber,
			ColRequisition,
			ColInputDate,
			"TOTAL AMOUNT",
			"VOUCHED AMOUNT",
			"DEPARTMENT NUMBER",
			"DEPARTMENT NAME",
			"COST CENTER",
			"COST CENTER NAME",
			"INPUT BY",
			"PURCHASING AGENT",
			ColPOTypeCode,
			"PO TYPE DESCRIPTION",
			ColPOCategoryCode,
			"PO CATEGORY DESCRIPTION",
			"PO STATUS CODE",
			"PO STATUS DESCRIPTION",
			"VENDOR NUMBER",
			"VENDOR NAME 1",
			"VENDOR NAME 2",
			"VENDOR ADDRESS 1",
			ColVendorAddress2,
			ColVendorCity,
			ColVendorState,
			ColVendorZip,
			"VENDOR CONTACT NAME",
			"VENDOR CONTACT TITLE",
			"VENDOR CONTACT PHONE",
			"VENDOR CONTACT EXTENSION",
			"VENDOR MINORITY CODE",
			"VENDOR MINORITY DESCRIPTION",
			"TOTAL ITEMS",
			"PO BALANCE",
			"ITEM NUMBER",
			ColItemDescription,
			"ITEM UNIT OF MEASURE",
			"ITEM UNIT OF MEASURE DESCRIPTION",
			"ITEM QUANTITY ORDERED",
			"ITEM UNIT COST",
			"ITEM TOTAL COST",
			ColUniqueID,
		},
		Required: []string{
			ColPONumber, ColRequisition, ColInputDate, "TOTAL AMOUNT",
			"DEPARTMENT NUMBER", "COST CENTER", "INPUT BY", ColPOTypeCode,
			"PO STATUS CODE", "VENDOR NUMBER", "TOTAL ITEMS", ColUniqueID,
		},
		Numeric: []string{
			"PO STATUS CODE", "VENDOR NUMBER", "VENDOR CONTACT EXTENSION",
			"TOTAL ITEMS", "ITEM NUMBER", "ITEM QUANTITY ORDERED",
		},
		Money: []string{
			"TOTAL AMOUNT", "VOUCHED AMOUNT", "PO BALANCE",
			"ITEM UNIT COST", "ITEM TOTAL COST",
		},
		Dates: []string{ColInputDate},
		Enums: map[string][]string{
			ColRecordType: {"H", "D"},
			ColPOTypeCode: {"G", "S", "B"},
		},
		Defaults: map[string]string{
			ColRequisition:    DefaultMissingValue,
			ColPOCategoryCode: DefaultMissingValue,
		},
		StripCommas: []string{ColItemDescription},
		ID:          ColUniqueID,
		Address: AddressFields{
			Line2:   ColVendorAddress2,
			City:    ColVendorCity,
			State:   ColVendorState,
			Zip:     ColVendorZip,
			Country: ColVendorCountry,
		},
	}
	r.index()
	return r
}

func (r *Registry) index() {
	r.kinds = make(map[string]Kind, len(r.Numeric)+len(r.Money)+len(r.Dates))
	for _, c := range r.Numeric {
		r.kinds[c] = KindNumeric
	}
	for _, c := range r.Money {
		r.kinds[c] = KindMoney
	}
	for _, c := range r.Dates {
		r.kinds[c] = KindDate
	}
	r.enumSets = make(map[string]map[string]struct{}, len(r.Enums))
	for col, vals := range r.Enums {
		set := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			set[v] = struct{}{}
		}
		r.enumSets[col] = set
	}
}

// KindOf returns the normalization kind of col. Unknown columns are text.
func (r *Registry) KindOf(col string) Kind {
	return r.kinds[col]
}

// Typed returns the numeric and money columns, in that order. These are the
// columns the validator checks for numeric coercion.
func (r *Registry) Typed() []string {
	out := make([]string, 0, len(r.Numeric)+len(r.Money))
	out = append(out, r.Numeric...)
	return append(out, r.Money...)
}

// Text returns the columns that hold free text (neither numeric, money nor
// date), in canonical order.
func (r *Registry) Text() []string {
	out := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		if r.KindOf(c) == KindText {
			out = append(out, c)
		}
	}
	return out
}

// EnumColumns returns the enum-restricted columns sorted by name.
func (r *Registry) EnumColumns() []string {
	out := make([]string, 0, len(r.Enums))
	for c := range r.Enums {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Permitted reports whether v is an allowed value for the enum column col.
// Columns without an enum restriction permit everything.
func (r *Registry) Permitted(col, v string) bool {
	set, ok := r.enumSets[col]
	if !ok {
		return true
	}
	_, ok = set[v]
	return ok
}

// Check verifies that every classified column is part of Columns and that no
// column carries two kinds.
func (r *Registry) Check() error {
	known := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		known[c] = struct{}{}
	}
	groups := map[string][]string{
		"required":     r.Required,
		"numeric":      r.Numeric,
		"money":        r.Money,
		"dates":        r.Dates,
		"strip_commas": r.StripCommas,
		"id":           {r.ID},
	}
	for col := range r.Enums {
		groups["enums"] = append(groups["enums"], col)
	}
	for col := range r.Defaults {
		groups["defaults"] = append(groups["defaults"], col)
	}
	for name, cols := range groups {
		for _, c := range cols {
			if _, ok := known[c]; !ok {
				return fmt.Errorf("schema: %s column %q is not in the column list", name, c)
			}
		}
	}
	seen := make(map[string]string)
	for name, cols := range map[string][]string{"numeric": r.Numeric, "money": r.Money, "dates": r.Dates} {
		for _, c := range cols {
			if prev, dup := seen[c]; dup {
				return fmt.Errorf("schema: column %q classified as both %s and %s", c, prev, name)
			}
			seen[c] = name
		}
	}
	return nil
}
