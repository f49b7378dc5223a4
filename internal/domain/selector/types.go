package selector

import (
	"strings"
	"time"
)

// WaitStrategy tells the page layer what to wait for before locating elements.
type WaitStrategy string

const (
	WaitNetworkIdle      WaitStrategy = "network_idle"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitLoad             WaitStrategy = "load"
)

// Valid reports whether w is a supported wait strategy.
func (w WaitStrategy) Valid() bool {
	switch w {
	case WaitNetworkIdle, WaitDOMContentLoaded, WaitLoad:
		return true
	}
	return false
}

// ValueType is the expected type of an extracted value.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueInteger ValueType = "integer"
	ValueBoolean ValueType = "boolean"
	ValueURL     ValueType = "url"
	ValueEmail   ValueType = "email"
	ValueDate    ValueType = "date"
)

// Valid reports whether t is a supported value type.
func (t ValueType) Valid() bool {
	switch t {
	case ValueString, ValueNumber, ValueInteger, ValueBoolean, ValueURL, ValueEmail, ValueDate:
		return true
	}
	return false
}

// Metadata describes a configuration file. Immutable after load.
type Metadata struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Description string    `json:"description"`
}

// ContextDefaults carries page-level defaults. Nil fields are unset at this
// level and inherit from ancestors.
type ContextDefaults struct {
	PageType     *string       `json:"page_type,omitempty"`
	WaitStrategy *WaitStrategy `json:"wait_strategy,omitempty"`
	Timeout      *int          `json:"timeout,omitempty"`
	Section      *string       `json:"section,omitempty"`
}

// Overlay returns a copy of d with every field explicitly set in o applied on top.
func (d ContextDefaults) Overlay(o *ContextDefaults) ContextDefaults {
	if o == nil {
		return d
	}
	if o.PageType != nil {
		d.PageType = o.PageType
	}
	if o.WaitStrategy != nil {
		d.WaitStrategy = o.WaitStrategy
	}
	if o.Timeout != nil {
		d.Timeout = o.Timeout
	}
	if o.Section != nil {
		d.Section = o.Section
	}
	return d
}

// ValidationRule constrains an extracted value. The same shape is used for
// file-level validation defaults; a selector's rule is overlaid on them.
type ValidationRule struct {
	Required  *bool      `json:"required,omitempty"`
	Type      *ValueType `json:"type,omitempty"`
	MinLength *int       `json:"min_length,omitempty"`
	MaxLength *int       `json:"max_length,omitempty"`
	Pattern   *string    `json:"pattern,omitempty"`
}

// ValidationDefaults are file-level defaults for ValidationRule.
type ValidationDefaults = ValidationRule

// Overlay returns a copy of r with every field explicitly set in o applied on top.
func (r ValidationRule) Overlay(o *ValidationRule) ValidationRule {
	if o == nil {
		return r
	}
	if o.Required != nil {
		r.Required = o.Required
	}
	if o.Type != nil {
		r.Type = o.Type
	}
	if o.MinLength != nil {
		r.MinLength = o.MinLength
	}
	if o.MaxLength != nil {
		r.MaxLength = o.MaxLength
	}
	if o.Pattern != nil {
		r.Pattern = o.Pattern
	}
	return r
}

// IsZero reports whether no field is set.
func (r ValidationRule) IsZero() bool {
	return r.Required == nil && r.Type == nil && r.MinLength == nil && r.MaxLength == nil && r.Pattern == nil
}

// ConfidenceConfig is an optional confidence declaration.
type ConfidenceConfig struct {
	Threshold *float64 `json:"threshold,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
}

// SemanticSelector is a named, context-scoped description of what to find.
type SemanticSelector struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Context     string               `json:"context"`
	Strategies  []StrategyDefinition `json:"strategies"`
	Validation  *ValidationRule      `json:"validation,omitempty"`
	Confidence  *ConfidenceConfig    `json:"confidence,omitempty"`
}

// Threshold returns the declared confidence threshold, if any.
func (s *SemanticSelector) Threshold() (float64, bool) {
	if s.Confidence == nil || s.Confidence.Threshold == nil {
		return 0, false
	}
	return *s.Confidence.Threshold, true
}

// SelectorConfiguration is one loaded file.
type SelectorConfiguration struct {
	Path               string                       `json:"path"`
	Metadata           *Metadata                    `json:"metadata,omitempty"`
	Selectors          map[string]*SemanticSelector `json:"selectors"`
	ContextDefaults    *ContextDefaults             `json:"context_defaults,omitempty"`
	ValidationDefaults *ValidationDefaults          `json:"validation_defaults,omitempty"`
	Templates          map[string]*StrategyTemplate `json:"strategy_templates"`

	// Parent is an explicit "inherits:" reference, already resolved to a
	// clean path. Empty means directory discovery decides the parent.
	Parent string `json:"inherits,omitempty"`

	// IsMarker is set for directory marker files (_context.yaml).
	IsMarker bool `json:"is_marker"`

	ModTime   time.Time `json:"mod_time"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	VersionID string    `json:"version_id,omitempty"`

	// Warnings are the non-fatal findings reported when the file was accepted.
	Warnings []Issue `json:"warnings,omitempty"`
}

// SelectorNames returns the selector names defined in the file, sorted.
func (c *SelectorConfiguration) SelectorNames() []string {
	return sortedKeys(c.Selectors)
}

// TemplateNames returns the template names defined in the file, sorted.
func (c *SelectorConfiguration) TemplateNames() []string {
	return sortedKeys(c.Templates)
}

// IsEmpty reports whether the file defines nothing at all.
func (c *SelectorConfiguration) IsEmpty() bool {
	return len(c.Selectors) == 0 && len(c.Templates) == 0 &&
		c.ContextDefaults == nil && c.ValidationDefaults == nil
}

// InheritanceChain is the resolved cascade for one file.
type InheritanceChain struct {
	ChildPath          string                       `json:"child_path"`
	Ancestors          []string                     `json:"ancestors"`
	ContextDefaults    ContextDefaults              `json:"context_defaults"`
	ValidationDefaults ValidationRule               `json:"validation_defaults"`
	Templates          map[string]*StrategyTemplate `json:"templates"`
	TemplateSources    map[string]string            `json:"template_sources"`
	Warnings           []string                     `json:"warnings,omitempty"`
}

// Template looks up a merged template.
func (c *InheritanceChain) Template(name string) (*StrategyTemplate, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.Templates[name]
	return t, ok
}

// IndexEntry is one selector as seen by the semantic index.
type IndexEntry struct {
	Name         string            `json:"name"`
	Context      string            `json:"context"`
	SourceFile   string            `json:"source_file"`
	Selector     *SemanticSelector `json:"selector"`
	LastModified time.Time         `json:"last_modified"`
}

// ResolutionContext describes where the caller currently is. Transient, per call.
type ResolutionContext struct {
	CurrentPage       string   `json:"current_page"`
	CurrentSection    string   `json:"current_section,omitempty"`
	TabContext        string   `json:"tab_context,omitempty"`
	NavigationHistory []string `json:"navigation_history,omitempty"`
}

// Page returns the effective page, falling back to the most recent history entry.
func (r ResolutionContext) Page() string {
	if r.CurrentPage != "" {
		return r.CurrentPage
	}
	if n := len(r.NavigationHistory); n > 0 {
		return r.NavigationHistory[n-1]
	}
	return ""
}

// Qualified returns the most specific context key: page, page.section or
// page.section.tab.
func (r ResolutionContext) Qualified() string {
	parts := []string{r.Page()}
	if r.CurrentSection != "" {
		parts = append(parts, r.CurrentSection)
		if r.TabContext != "" {
			parts = append(parts, r.TabContext)
		}
	}
	return strings.Join(parts, ".")
}

// ResolvedStrategy is one step of a resolution plan.
type ResolvedStrategy struct {
	Type       StrategyType   `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Priority   int            `json:"priority"`
	Confidence float64        `json:"confidence"`
	Template   string         `json:"template,omitempty"`
}

// SelectorResult is the confidence-ranked plan handed to the page layer.
type SelectorResult struct {
	Selector         *SemanticSelector  `json:"selector"`
	SourceFile       string             `json:"source_file"`
	Strategies       []ResolvedStrategy `json:"strategies"`
	Confidence       float64            `json:"confidence"`
	Duration         time.Duration      `json:"duration"`
	ContextUsed      string             `json:"context_used"`
	MatchedContext   string             `json:"matched_context"`
	TemplatesApplied []string           `json:"templates_applied,omitempty"`
	WaitStrategy     *WaitStrategy      `json:"wait_strategy,omitempty"`
	Timeout          *int               `json:"timeout,omitempty"`
	Validation       *ValidationRule    `json:"validation,omitempty"`
}
