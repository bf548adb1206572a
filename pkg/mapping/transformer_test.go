package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

func salesOrder() models.RawRecord {
	return models.RawRecord{
		"internalId": "1001",
		"tranId":     "SO-1001",
		"entity":     map[string]interface{}{"internalId": "77", "name": "Acme"},
		"itemList": map[string]interface{}{
			"item": []interface{}{
				map[string]interface{}{"item": map[string]interface{}{"name": "WIDGET"}, "quantity": 2.0},
				map[string]interface{}{"item": map[string]interface{}{"name": "GADGET"}, "quantity": 1.0},
			},
		},
		"customFieldList": map[string]interface{}{
			"customField": []interface{}{
				map[string]interface{}{"scriptId": "custbody_po", "value": "PO-9"},
			},
		},
	}
}

func TestTransform(t *testing.T) {
	spec := Spec{
		"order_no":  {Type: RuleField, Source: "tranId", Required: true},
		"customer":  {Type: RulePath, Source: "entity.name"},
		"po":        {Type: RuleCustom, Source: "@custbody_po"},
		"status":    {Type: RuleConst, Value: "new"},
		"label":     {Type: RuleFunc, Func: "join", Args: []FieldRule{{Type: RuleConst, Value: "/"}, {Type: RuleField, Source: "tranId"}, {Type: RulePath, Source: "entity.internalId"}}},
		"missing":   {Type: RuleField, Source: "memo", Default: "n/a"},
		"buyer":     {Type: RuleObject, Source: "entity", Fields: Spec{"id": {Type: RuleField, Source: "internalId"}}},
		"items":     {Type: RuleList, Source: "itemList.item", Fields: Spec{"sku": {Type: RulePath, Source: "item.name"}, "qty": {Type: RuleField, Source: "quantity"}}},
		"first_sku": {Type: RulePath, Source: "itemList.item.0.item.name"},
	}

	raw := salesOrder()
	out, err := NewTransformer().Transform(raw, spec)
	require.NoError(t, err)

	assert.Equal(t, "SO-1001", out["order_no"])
	assert.Equal(t, "Acme", out["customer"])
	assert.Equal(t, "PO-9", out["po"])
	assert.Equal(t, "new", out["status"])
	assert.Equal(t, "SO-1001/77", out["label"])
	assert.Equal(t, "n/a", out["missing"])
	assert.Equal(t, map[string]interface{}{"id": "77"}, out["buyer"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"sku": "WIDGET", "qty": 2.0},
		map[string]interface{}{"sku": "GADGET", "qty": 1.0},
	}, out["items"])
	assert.Equal(t, "WIDGET", out["first_sku"])

	assert.Equal(t, salesOrder(), raw, "input must not be mutated")
}

func TestTransformRequiredMissing(t *testing.T) {
	spec := Spec{"order_no": {Type: RuleField, Source: "tranId", Required: true}}

	_, err := NewTransformer().Transform(models.RawRecord{"internalId": "1"}, spec)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMapping))
}

func TestTransformRequiredCustomFieldMissing(t *testing.T) {
	spec := Spec{"po": {Type: RuleCustom, Source: "@custbody_po", Required: true}}

	_, err := NewTransformer().Transform(models.RawRecord{"customFieldList": nil}, spec)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMapping))
}

func TestTransformUnknownFunction(t *testing.T) {
	spec := Spec{"x": {Type: RuleFunc, Func: "nope"}}

	_, err := NewTransformer().Transform(models.RawRecord{}, spec)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMapping))
}

func TestTransformCustomFunc(t *testing.T) {
	double := func(args []interface{}) (interface{}, error) { return args[0].(float64) * 2, nil }
	tr := NewTransformer(WithFuncs(Funcs{"double": double}))

	out, err := tr.Transform(models.RawRecord{"qty": 2.0}, Spec{
		"qty": {Type: RuleFunc, Func: "double", Args: []FieldRule{{Type: RuleField, Source: "qty"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, out["qty"])
}

func TestTransformNilSpec(t *testing.T) {
	_, err := NewTransformer().Transform(models.RawRecord{}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMapping))
}

func TestSpecYAMLShorthand(t *testing.T) {
	doc := `
order_no: tranId
customer: entity.name
po: "@custbody_po"
status: "=Pending Fulfillment"
memo:
  src: memo
  default: none
lines:
  type: list
  src: itemList.item
  fields:
    sku: item.name
`
	var spec Spec
	require.NoError(t, yaml.Unmarshal([]byte(doc), &spec))

	assert.Equal(t, FieldRule{Type: RuleField, Source: "tranId"}, spec["order_no"])
	assert.Equal(t, FieldRule{Type: RulePath, Source: "entity.name"}, spec["customer"])
	assert.Equal(t, FieldRule{Type: RuleCustom, Source: "@custbody_po"}, spec["po"])
	assert.Equal(t, FieldRule{Type: RuleConst, Value: "Pending Fulfillment"}, spec["status"])
	assert.Equal(t, RuleField, spec["memo"].Type)
	assert.Equal(t, "none", spec["memo"].Default)
	assert.Equal(t, RuleList, spec["lines"].Type)
	assert.Equal(t, RulePath, spec["lines"].Fields["sku"].Type)
}

func TestSpecYAMLRejectsUnknownType(t *testing.T) {
	var spec Spec
	err := yaml.Unmarshal([]byte("x:\n  type: magic\n"), &spec)
	assert.Error(t, err)
}

func TestTableLookupFallsBack(t *testing.T) {
	table := Table{
		DefaultTarget: {"order": Spec{"a": {Type: RuleConst, Value: 1}}},
		"dw":          {"customer": Spec{"b": {Type: RuleConst, Value: 2}}},
	}

	_, ok := table.Lookup("dw", "customer")
	assert.True(t, ok)
	_, ok = table.Lookup("dw", "order")
	assert.True(t, ok)
	_, ok = table.Lookup("", "order")
	assert.True(t, ok)
	_, ok = table.Lookup("", "vendor")
	assert.False(t, ok)
}
