package selector

import (
	"maps"
	"sort"
)

// StrategyType is one concrete element location technique.
type StrategyType string

const (
	TextAnchor      StrategyType = "text_anchor"
	AttributeMatch  StrategyType = "attribute_match"
	CSSSelector     StrategyType = "css_selector"
	XPath           StrategyType = "xpath"
	DOMRelationship StrategyType = "dom_relationship"
	RoleBased       StrategyType = "role_based"
)

// requiredParameters lists the parameter keys each strategy type must supply.
var requiredParameters = map[StrategyType][]string{
	TextAnchor:      {"text"},
	AttributeMatch:  {"attribute", "value"},
	CSSSelector:     {"selector"},
	XPath:           {"expression"},
	DOMRelationship: {"relationship", "target"},
	RoleBased:       {"role"},
}

// StrategyTypes returns every supported strategy type in a stable order.
func StrategyTypes() []StrategyType {
	return []StrategyType{TextAnchor, AttributeMatch, CSSSelector, XPath, DOMRelationship, RoleBased}
}

// Valid reports whether t is a supported strategy type.
func (t StrategyType) Valid() bool {
	_, ok := requiredParameters[t]
	return ok
}

// RequiredParameters returns the parameter keys t requires.
func (t StrategyType) RequiredParameters() []string {
	return append([]string(nil), requiredParameters[t]...)
}

// MissingParameters returns the required keys absent (or empty) in params.
func (t StrategyType) MissingParameters(params map[string]any) []string {
	var missing []string
	for _, key := range requiredParameters[t] {
		v, ok := params[key]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// StrategyTemplate is a named reusable strategy.
type StrategyTemplate struct {
	Name       string            `json:"name"`
	Type       StrategyType      `json:"type"`
	Parameters map[string]any    `json:"parameters"`
	Validation *ValidationRule   `json:"validation,omitempty"`
	Confidence *ConfidenceConfig `json:"confidence,omitempty"`
}

// StrategyKind discriminates the StrategyDefinition union.
type StrategyKind int

const (
	// KindInline carries its own type and parameters.
	KindInline StrategyKind = iota
	// KindTemplateRef names a template and overrides some of its parameters.
	KindTemplateRef
)

func (k StrategyKind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindTemplateRef:
		return "template_ref"
	default:
		return "unknown"
	}
}

// StrategyDefinition is a concrete strategy attached to a selector: either
// Inline{Type, Parameters, Priority} or TemplateRef{Template, Parameters
// (overrides), Priority}. Use NewInline and NewTemplateRef to build one.
//
// For a TemplateRef, Type is optional; when set it must agree with the
// referenced template's type.
type StrategyDefinition struct {
	Kind       StrategyKind   `json:"kind"`
	Type       StrategyType   `json:"type,omitempty"`
	Template   string         `json:"template,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   int            `json:"priority"`
}

// NewInline builds an inline strategy.
func NewInline(t StrategyType, params map[string]any, priority int) StrategyDefinition {
	return StrategyDefinition{
		Kind:       KindInline,
		Type:       t,
		Parameters: params,
		Priority:   priority,
	}
}

// NewTemplateRef builds a template reference. declared may be empty.
func NewTemplateRef(template string, overrides map[string]any, priority int, declared StrategyType) StrategyDefinition {
	return StrategyDefinition{
		Kind:       KindTemplateRef,
		Type:       declared,
		Template:   template,
		Parameters: overrides,
		Priority:   priority,
	}
}

// IsTemplateRef reports whether the strategy references a template.
func (s StrategyDefinition) IsTemplateRef() bool {
	return s.Kind == KindTemplateRef
}

// MergeParameters returns base overlaid with overrides; overrides win.
// Neither input is modified.
func MergeParameters(base, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overrides))
	maps.Copy(merged, base)
	maps.Copy(merged, overrides)
	return merged
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
