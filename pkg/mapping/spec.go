// Package mapping turns raw source records into target-shaped records.
//
// A Spec maps each target field to a FieldRule. Rules read a top-level
// field, a dotted path, a custom (extension) field, a constant, the result
// of a registered function, or apply a nested Spec to a sub-document or to
// every element of a list. Specs are owned by configuration and are never
// mutated by the transformer, so one Spec can be shared by any number of
// concurrent workers.
package mapping

import (
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// RuleType selects how a FieldRule derives its value.
type RuleType string

const (
	RuleField  RuleType = "field"
	RulePath   RuleType = "path"
	RuleCustom RuleType = "custom"
	RuleConst  RuleType = "const"
	RuleFunc   RuleType = "func"
	RuleList   RuleType = "list"
	RuleObject RuleType = "object"
)

// Spec maps target field names to rules.
type Spec map[string]FieldRule

// FieldRule describes how one target value is derived.
//
// In YAML or JSON a rule may also be written as a bare string:
// "tranId" is a field rule, "entity.internalId" a path rule,
// "@custbody_po" a custom field rule and "=Pending" a constant.
type FieldRule struct {
	Type     RuleType    `yaml:"type" json:"type"`
	Source   string      `yaml:"src,omitempty" json:"src,omitempty"`
	Value    interface{} `yaml:"value,omitempty" json:"value,omitempty"`
	Func     string      `yaml:"func,omitempty" json:"func,omitempty"`
	Args     []FieldRule `yaml:"args,omitempty" json:"args,omitempty"`
	Fields   Spec        `yaml:"fields,omitempty" json:"fields,omitempty"`
	Required bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Default  interface{} `yaml:"default,omitempty" json:"default,omitempty"`
}

// ParseRule expands the string shorthand into a rule.
func ParseRule(s string) FieldRule {
	switch {
	case strings.HasPrefix(s, "="):
		return FieldRule{Type: RuleConst, Value: strings.TrimPrefix(s, "=")}
	case strings.HasPrefix(s, "@"):
		return FieldRule{Type: RuleCustom, Source: s}
	case strings.Contains(s, "."):
		return FieldRule{Type: RulePath, Source: s}
	default:
		return FieldRule{Type: RuleField, Source: s}
	}
}

type fieldRuleAlias FieldRule

// UnmarshalYAML accepts either the string shorthand or a full rule.
func (r *FieldRule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*r = ParseRule(s)
		return nil
	}
	var alias fieldRuleAlias
	if err := node.Decode(&alias); err != nil {
		return err
	}
	*r = FieldRule(alias)
	return r.normalize()
}

// UnmarshalJSON accepts either the string shorthand or a full rule.
func (r *FieldRule) UnmarshalJSON(data []byte) error {
	var s string
	if err := gojson.Unmarshal(data, &s); err == nil {
		*r = ParseRule(s)
		return nil
	}
	var alias fieldRuleAlias
	if err := gojson.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = FieldRule(alias)
	return r.normalize()
}

// normalize infers a missing type and rejects unknown ones.
func (r *FieldRule) normalize() error {
	if r.Type == "" {
		switch {
		case r.Func != "":
			r.Type = RuleFunc
		case r.Fields != nil && r.Source == "":
			r.Type = RuleObject
		case r.Source != "":
			r.Type = ParseRule(r.Source).Type
		default:
			r.Type = RuleConst
		}
	}
	switch r.Type {
	case RuleField, RulePath, RuleCustom, RuleConst, RuleFunc, RuleList, RuleObject:
		return nil
	default:
		return fmt.Errorf("unknown mapping rule type %q", r.Type)
	}
}

// Table is the mapping table: target -> kind -> Spec.
type Table map[string]map[string]Spec

// DefaultTarget is the key used when the caller does not name a target.
const DefaultTarget = "default"

// Lookup returns the spec for kind under target, falling back to the
// default target when target is empty or unknown.
func (t Table) Lookup(target, kind string) (Spec, bool) {
	if target == "" {
		target = DefaultTarget
	}
	if byKind, ok := t[target]; ok {
		if spec, ok := byKind[kind]; ok {
			return spec, true
		}
	}
	if target != DefaultTarget {
		if spec, ok := t[DefaultTarget][kind]; ok {
			return spec, true
		}
	}
	return nil, false
}
