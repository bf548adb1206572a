package pipeline

import (
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

const notInStock = "Not in Stock"

// postProcess reshapes a transformed record for kinds whose target shape
// differs from the mapped one. Other kinds pass through unchanged.
func postProcess(kind string, data map[string]interface{}, w models.Window) (map[string]interface{}, error) {
	switch kind {
	case "inventory":
		return map[string]interface{}{
			"inventory":                 data["locations"],
			"last_qty_available_change": w.Filter("last_qty_available_change", true),
		}, nil
	case "inventorylot":
		lots, err := listOf(data, "inventoryNumbers", false)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(lots))
		for _, l := range lots {
			lot, ok := l.(map[string]interface{})
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeMapping, "inventory lot has type %T", l)
			}
			out = append(out, filterLot(lot))
		}
		return map[string]interface{}{"inventorylots": out}, nil
	case "pricelevel":
		levels, err := listOf(data, "pricelevels", false)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(levels))
		for _, l := range levels {
			entry, err := flattenPriceLevel(l)
			if err != nil {
				return nil, err
			}
			out = append(out, entry)
		}
		return map[string]interface{}{"pricelevels": out}, nil
	default:
		return data, nil
	}
}

// filterLot returns a copy of lot without empty locations. A lot that is
// not in stock keeps no locations at all.
func filterLot(lot map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(lot))
	for k, v := range lot {
		out[k] = v
	}

	kept := []interface{}{}
	if status, _ := lot["status"].(string); status != notInStock {
		locations, _ := lot["locations"].([]interface{})
		for _, loc := range locations {
			if quantitySum(loc) != 0 {
				kept = append(kept, loc)
			}
		}
	}
	out["locations"] = kept
	return out
}

// quantitySum adds up the numeric fields of one location. Strings,
// nulls and nested values do not count.
func quantitySum(loc interface{}) float64 {
	m, ok := loc.(map[string]interface{})
	if !ok {
		return 0
	}
	var sum float64
	for _, v := range m {
		switch n := v.(type) {
		case float64:
			sum += n
		case float32:
			sum += float64(n)
		case int:
			sum += float64(n)
		case int64:
			sum += float64(n)
		case bool:
			if n {
				sum++
			}
		}
	}
	return sum
}

// flattenPriceLevel turns one source price level into
// {name, pricelist: [{price, qty}]}.
func flattenPriceLevel(v interface{}) (map[string]interface{}, error) {
	level, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeMapping, "price level has type %T", v)
	}
	ref, ok := level["priceLevel"].(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrorTypeMapping, "price level reference is missing")
	}
	name, ok := ref["name"]
	if !ok {
		return nil, errors.New(errors.ErrorTypeMapping, "price level name is missing")
	}
	list, ok := level["priceList"].(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrorTypeMapping, "price list is missing")
	}
	prices, err := listOf(list, "price", true)
	if err != nil {
		return nil, err
	}

	entries := make([]interface{}, 0, len(prices))
	for _, p := range prices {
		price, ok := p.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeMapping, "price has type %T", p)
		}
		value, ok := price["value"]
		if !ok {
			return nil, errors.New(errors.ErrorTypeMapping, "price value is missing")
		}
		entries = append(entries, map[string]interface{}{
			"price": scalarString(value),
			"qty":   quantity(price["quantity"]),
		})
	}
	return map[string]interface{}{"name": name, "pricelist": entries}, nil
}

// quantity defaults to 1 when the source leaves it null.
func quantity(v interface{}) interface{} {
	switch n := v.(type) {
	case nil:
		return 1
	case float64:
		return int(n)
	default:
		return n
	}
}

// listOf reads m[key] as a list. An absent key is an empty list unless
// required is set.
func listOf(m map[string]interface{}, key string, required bool) ([]interface{}, error) {
	v, ok := m[key]
	if !ok && required {
		return nil, errors.Newf(errors.ErrorTypeMapping, "%s is missing", key).WithDetail("field", key)
	}
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeMapping, "%s has type %T", key, v).WithDetail("field", key)
	}
	return list, nil
}
