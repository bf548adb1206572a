package pipeline

import (
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/lookup"
)

// enrichTransaction translates the source codes of a transformed
// transaction into target codes. data is not modified; nested addresses
// are copied before their country is rewritten.
func enrichTransaction(tables lookup.Tables, data map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}

	if code, ok := present(out["paymentMethod"]); ok {
		method, err := tables.PaymentMethod(code)
		if err != nil {
			return nil, err
		}
		out["paymentMethod"] = method
		if term, ok := tables.TermFor(method); ok {
			out["terms"] = term
		} else {
			delete(out, "terms")
		}
	}

	if code, ok := present(out["shipMethod"]); ok {
		method, err := tables.ShipMethod(code)
		if err != nil {
			return nil, err
		}
		out["shipMethod"] = method
	}

	for _, field := range []string{"billingAddress", "shippingAddress"} {
		addr, ok := out[field].(map[string]interface{})
		if !ok || len(addr) == 0 {
			continue
		}
		code, _ := addr["country"].(string)
		country, err := tables.Country(code)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeLookup, field+" country translation failed")
		}
		copied := make(map[string]interface{}, len(addr))
		for k, v := range addr {
			copied[k] = v
		}
		copied["country"] = country
		out[field] = copied
	}
	return out, nil
}

// validatePerson checks the fields the target requires for kind.
func validatePerson(kind, srcID string, data map[string]interface{}) error {
	switch kind {
	case "customer", "vendor":
		if email, _ := present(data["email"]); email == "" {
			return errors.Newf(errors.ErrorTypeValidation, "%s email is null in data", srcID).
				WithDetail("kind", kind)
		}
	}
	return nil
}

// present reports a non-empty string code.
func present(v interface{}) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, s != ""
	default:
		return scalarString(v), true
	}
}
