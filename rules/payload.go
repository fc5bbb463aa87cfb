package rules

import (
	"github.com/spf13/cast"
)

// Form holds the raw field values of the rule editing form. Selection
// widgets deliver their value either as a plain scalar, as a {value: ...}
// wrapper, or as an empty list when the user cleared the selection, so the
// loosely typed fields are normalized during payload construction.
type Form struct {
	ID       string
	ParentID string
	Type     Type

	Label   string
	Comment string

	TargetProperty any
	ValueType      any
	SourceProperty any
	IsAttribute    bool

	// Object mapping fields.
	TargetEntityType []any
	Pattern          string
	EntityConnection bool
}

// SelectionValue normalizes a selection-widget value to a string. A
// {value: ...} wrapper is unwrapped, an empty or absent selection yields
// "" rather than an omission.
func SelectionValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case map[string]any:
		if inner, ok := v["value"]; ok {
			return cast.ToString(inner)
		}
		if len(v) == 0 {
			return ""
		}
		return cast.ToString(v)
	case []any:
		if len(v) == 0 {
			return ""
		}
		return cast.ToString(v[0])
	default:
		return cast.ToString(v)
	}
}

// selectionValueType normalizes the value-type selection. It accepts a
// ValueType directly or the usual selection wrapper shapes; an empty
// selection yields the zero ValueType.
func selectionValueType(raw any) ValueType {
	switch v := raw.(type) {
	case nil:
		return ValueType{}
	case ValueType:
		return v
	case *ValueType:
		if v == nil {
			return ValueType{}
		}
		return *v
	case map[string]any:
		if inner, ok := v["value"]; ok {
			return selectionValueType(inner)
		}
		return ValueType{
			NodeType: cast.ToString(v["nodeType"]),
			URI:      cast.ToString(v["uri"]),
			Lang:     cast.ToString(v["lang"]),
		}
	case []any:
		if len(v) == 0 {
			return ValueType{}
		}
		return selectionValueType(v[0])
	default:
		return ValueType{NodeType: cast.ToString(v)}
	}
}

// ValueMappingPayload builds the create/update payload for a value rule
// (direct or complex) from the raw form values. Only direct rules carry a
// source path; a cleared source selection yields sourcePath "" instead of
// omitting the field. The rule type is only set for brand-new rules, the
// type of an existing rule is immutable.
func ValueMappingPayload(f Form) *Rule {
	r := &Rule{
		Metadata: Metadata{
			Label:       f.Label,
			Description: f.Comment,
		},
		MappingTarget: &MappingTarget{
			URI:         SelectionValue(f.TargetProperty),
			ValueType:   selectionValueType(f.ValueType),
			IsAttribute: f.IsAttribute,
		},
	}

	if f.Type == TypeDirect {
		sourcePath := SelectionValue(f.SourceProperty)
		r.SourcePath = &sourcePath
	}

	if f.ID == "" {
		r.Type = f.Type
	}

	return r
}

// ObjectMappingPayload builds the create/update payload for an object rule
// from the raw form values. Type rules are derived from the target entity
// type selections, the uri rule is only built when a pattern was supplied,
// and brand-new rules get an explicit empty propertyRules list.
func ObjectMappingPayload(f Form) *Rule {
	typeRules := make([]TypeRule, 0, len(f.TargetEntityType))
	for _, selected := range f.TargetEntityType {
		typeRules = append(typeRules, NewTypeRule(SelectionValue(selected)))
	}

	sourcePath := SelectionValue(f.SourceProperty)

	r := &Rule{
		Metadata: Metadata{
			Label:       f.Label,
			Description: f.Comment,
		},
		MappingTarget: &MappingTarget{
			URI:                SelectionValue(f.TargetProperty),
			ValueType:          ValueType{NodeType: NodeTypeURI},
			IsBackwardProperty: f.EntityConnection,
		},
		SourcePath: &sourcePath,
		Rules: &ChildRules{
			TypeRules: typeRules,
		},
	}

	if f.Pattern != "" {
		r.Rules.URIRule = &URIRule{Type: TypeURI, Pattern: f.Pattern}
	}

	if f.ID == "" {
		r.Type = TypeObject
		r.Rules.PropertyRules = []*Rule{}
	}

	return r
}
