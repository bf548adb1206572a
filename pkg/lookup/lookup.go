// Package lookup translates source codes into target codes: payment methods,
// payment terms, shipping methods and countries. Tables are read-only once
// built and safe to share across workers.
package lookup

import (
	"github.com/ajitpratap0/nsagency/pkg/errors"
)

// Term is one payment term and the payment methods it allows.
type Term struct {
	Name           string   `yaml:"name" json:"name"`
	PaymentMethods []string `yaml:"payment_methods" json:"payment_methods"`
}

// Tables holds every code translation the upsert stage needs.
type Tables struct {
	PaymentMethods map[string]string `yaml:"payment_methods" json:"payment_methods"`
	ShipMethods    map[string]string `yaml:"ship_methods" json:"ship_methods"`
	Countries      map[string]string `yaml:"countries" json:"countries"`
	// Terms is ordered; the first term allowing a method wins.
	Terms []Term `yaml:"terms" json:"terms"`
}

// Default tables used when configuration leaves a table empty.
var (
	DefaultPaymentMethods = map[string]string{"####": "Net Terms"}
	DefaultShipMethods    = map[string]string{"####": "Will Call"}
	DefaultCountries      = map[string]string{"US": "_unitedStates"}
	DefaultTerms          = []Term{
		{Name: "Net 15", PaymentMethods: []string{"Net Terms"}},
		{Name: "Credit Card", PaymentMethods: []string{"Visa"}},
	}
)

// WithDefaults returns a copy of t where every empty table is replaced by
// its default.
func (t Tables) WithDefaults() Tables {
	if len(t.PaymentMethods) == 0 {
		t.PaymentMethods = DefaultPaymentMethods
	}
	if len(t.ShipMethods) == 0 {
		t.ShipMethods = DefaultShipMethods
	}
	if len(t.Countries) == 0 {
		t.Countries = DefaultCountries
	}
	if len(t.Terms) == 0 {
		t.Terms = DefaultTerms
	}
	return t
}

// PaymentMethod translates a payment method code.
func (t Tables) PaymentMethod(code string) (string, error) {
	return translate("payment_method", t.PaymentMethods, code)
}

// ShipMethod translates a shipping method code.
func (t Tables) ShipMethod(code string) (string, error) {
	return translate("ship_method", t.ShipMethods, code)
}

// Country translates a country code.
func (t Tables) Country(code string) (string, error) {
	return translate("country", t.Countries, code)
}

// TermFor returns the first term whose allowed methods contain method.
// The second value is false when no term matches; that is not an error.
func (t Tables) TermFor(method string) (string, bool) {
	for _, term := range t.Terms {
		for _, m := range term.PaymentMethods {
			if m == method {
				return term.Name, true
			}
		}
	}
	return "", false
}

func translate(table string, m map[string]string, code string) (string, error) {
	v, ok := m[code]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeLookup, "no %s translation for %q", table, code).
			WithDetail("table", table).
			WithDetail("code", code)
	}
	return v, nil
}
