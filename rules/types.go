// Package rules implements the hierarchical schema-mapping rule model:
// the rule tree the transform-task service serves, breadcrumb search over
// it, and payload construction for rule create/update requests.
package rules

import (
	json "github.com/goccy/go-json"
)

// Type is the mapping rule type.
type Type string

// Mapping rule types as used by the transform-task service.
const (
	TypeRoot       Type = "root"
	TypeObject     Type = "object"
	TypeDirect     Type = "direct"
	TypeComplex    Type = "complex"
	TypeURI        Type = "uri"
	TypeComplexURI Type = "complexUri"
)

// IsRootOrObject reports whether the type opens an object scope, i.e. the
// rule may carry child property rules.
func (t Type) IsRootOrObject() bool {
	return t == TypeRoot || t == TypeObject
}

// IsValue reports whether the type is a value-bearing rule.
func (t Type) IsValue() bool {
	return t == TypeDirect || t == TypeComplex
}

// NodeTypeURI is the value-type node type of object mapping targets.
const NodeTypeURI = "UriValueType"

// Metadata holds the human-readable label and optional description of a rule.
type Metadata struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ValueType describes the value type of a target property, e.g. string,
// int or a language-tagged literal.
type ValueType struct {
	// NodeType is the node type ID, e.g. "UriValueType", "StringValueType".
	NodeType string `json:"nodeType"`
	// URI of the data type when this is a custom data type.
	URI string `json:"uri,omitempty"`
	// Lang of a language-tagged property.
	Lang string `json:"lang,omitempty"`
}

// MappingTarget is the target of a mapping rule. The URI is not necessarily
// a URI, this depends on the target dataset, e.g. it could be any string
// when writing to JSON.
type MappingTarget struct {
	URI       string    `json:"uri"`
	ValueType ValueType `json:"valueType"`
	// IsAttribute only has relevance when mapping to XML. If true the
	// target becomes an attribute.
	IsAttribute bool `json:"isAttribute,omitempty"`
	// IsBackwardProperty reverses the property direction. This only
	// applies to graph datasets, i.e. RDF.
	IsBackwardProperty bool `json:"isBackwardProperty,omitempty"`
}

// TypeRule declares one target-vocabulary class an object rule instantiates.
type TypeRule struct {
	Type    string `json:"type"`
	TypeURI string `json:"typeUri"`
}

// NewTypeRule returns a type rule for the given class URI.
func NewTypeRule(typeURI string) TypeRule {
	return TypeRule{Type: "type", TypeURI: typeURI}
}

// URIRule defines how target-entity identifiers are generated for an
// object rule.
type URIRule struct {
	ID      string `json:"id,omitempty"`
	Type    Type   `json:"type"`
	Pattern string `json:"pattern,omitempty"`
}

// ChildRules is the nested rule structure of an object rule.
type ChildRules struct {
	URIRule       *URIRule   `json:"uriRule,omitempty"`
	TypeRules     []TypeRule `json:"typeRules,omitempty"`
	PropertyRules []*Rule    `json:"propertyRules,omitempty"`
}

// MarshalJSON keeps the nil/empty distinction for the child collections:
// a brand-new object rule must send an explicit empty propertyRules list,
// while an update must omit the field entirely so the server keeps the
// existing children.
func (c ChildRules) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if c.URIRule != nil {
		out["uriRule"] = c.URIRule
	}
	if c.TypeRules != nil {
		out["typeRules"] = c.TypeRules
	}
	if c.PropertyRules != nil {
		out["propertyRules"] = c.PropertyRules
	}
	return json.Marshal(out)
}

// Rule is one node of the mapping rule tree. The ID is server-assigned and
// absent for unsaved drafts. Value rules (direct, complex) carry a mapping
// target and source path; object rules (including the root) additionally
// carry child rules.
type Rule struct {
	ID            string         `json:"id,omitempty"`
	Type          Type           `json:"type,omitempty"`
	Metadata      Metadata       `json:"metadata"`
	MappingTarget *MappingTarget `json:"mappingTarget,omitempty"`
	// SourcePath is the path expression against the source schema. It is
	// a pointer so an intentionally cleared path serializes as "" instead
	// of being omitted.
	SourcePath *string     `json:"sourcePath,omitempty"`
	Rules      *ChildRules `json:"rules,omitempty"`
}

// TargetURI returns the mapping target property URI, or "" when the rule
// has no mapping target.
func (r *Rule) TargetURI() string {
	if r == nil || r.MappingTarget == nil {
		return ""
	}
	return r.MappingTarget.URI
}

// PrimaryTypeURI returns the first declared type rule's class URI, or ""
// when the rule declares no types.
func (r *Rule) PrimaryTypeURI() string {
	if r == nil || r.Rules == nil || len(r.Rules.TypeRules) == 0 {
		return ""
	}
	return r.Rules.TypeRules[0].TypeURI
}

// SourcePathString returns the source path, or "" when unset.
func (r *Rule) SourcePathString() string {
	if r == nil || r.SourcePath == nil {
		return ""
	}
	return *r.SourcePath
}
