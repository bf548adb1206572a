package mapping

import (
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// Transformer applies a Spec to raw records. It performs no I/O and never
// mutates its input.
type Transformer struct {
	resolver *Resolver
	funcs    Funcs
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithResolver overrides the custom field resolver.
func WithResolver(r *Resolver) Option {
	return func(t *Transformer) { t.resolver = r }
}

// WithFuncs adds or replaces computed-field functions.
func WithFuncs(funcs Funcs) Option {
	return func(t *Transformer) {
		for name, fn := range funcs {
			t.funcs[name] = fn
		}
	}
}

// NewTransformer creates a transformer with the default resolver and functions.
func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		resolver: defaultResolver,
		funcs:    DefaultFuncs(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform produces the target-shaped record for raw. It fails with a
// mapping error when a required source is absent or an unknown function is
// referenced.
func (t *Transformer) Transform(raw models.RawRecord, spec Spec) (map[string]interface{}, error) {
	if spec == nil {
		return nil, errors.New(errors.ErrorTypeMapping, "no mapping spec")
	}
	return t.apply(raw, spec, "")
}

func (t *Transformer) apply(raw models.RawRecord, spec Spec, prefix string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(spec))
	for target, rule := range spec {
		v, err := t.value(raw, rule, prefix+target)
		if err != nil {
			return nil, err
		}
		out[target] = v
	}
	return out, nil
}

func (t *Transformer) value(raw models.RawRecord, rule FieldRule, field string) (interface{}, error) {
	var (
		v     interface{}
		found bool
	)

	switch rule.Type {
	case RuleConst:
		return rule.Value, nil

	case RuleField:
		v, found = raw[rule.Source]

	case RulePath:
		v, found = Lookup(raw, rule.Source)

	case RuleCustom:
		v, found = t.resolver.Resolve(raw, rule.Source)

	case RuleFunc:
		return t.call(raw, rule, field)

	case RuleObject:
		src := interface{}(raw)
		if rule.Source != "" {
			src, found = Lookup(raw, rule.Source)
			if !found || src == nil {
				return t.missing(rule, field)
			}
		}
		sub, ok := asMap(src)
		if !ok {
			return nil, mappingError(field, rule, "source is not an object")
		}
		return t.apply(sub, rule.Fields, field+".")

	case RuleList:
		src, ok := Lookup(raw, rule.Source)
		if !ok || src == nil {
			return t.missing(rule, field)
		}
		return t.list(src, rule, field)

	default:
		return nil, mappingError(field, rule, "unknown rule type")
	}

	if !found || v == nil {
		return t.missing(rule, field)
	}
	return v, nil
}

func (t *Transformer) missing(rule FieldRule, field string) (interface{}, error) {
	if rule.Required {
		return nil, mappingError(field, rule, "required source is absent")
	}
	return rule.Default, nil
}

func (t *Transformer) call(raw models.RawRecord, rule FieldRule, field string) (interface{}, error) {
	fn, ok := t.funcs[rule.Func]
	if !ok {
		return nil, mappingError(field, rule, "unknown function "+rule.Func)
	}
	args := make([]interface{}, len(rule.Args))
	for i, arg := range rule.Args {
		v, err := t.value(raw, arg, field)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn(args)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMapping, "function "+rule.Func+" failed").
			WithDetail("field", field)
	}
	if v == nil {
		return t.missing(rule, field)
	}
	return v, nil
}

func (t *Transformer) list(src interface{}, rule FieldRule, field string) (interface{}, error) {
	items, ok := asList(src)
	if !ok {
		return nil, mappingError(field, rule, "source is not a list")
	}
	if rule.Fields == nil {
		out := make([]interface{}, len(items))
		copy(out, items)
		return out, nil
	}
	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, mappingError(field, rule, "list element is not an object")
		}
		mapped, err := t.apply(m, rule.Fields, field+"[].")
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

func mappingError(field string, rule FieldRule, msg string) error {
	return errors.New(errors.ErrorTypeMapping, field+": "+msg).
		WithDetail("field", field).
		WithDetail("source", rule.Source).
		WithDetail("rule", string(rule.Type))
}
