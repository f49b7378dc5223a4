package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

// document mirrors the on-disk YAML shape.
type document struct {
	Inherits           string                  `yaml:"inherits"`
	Metadata           *metadataDoc            `yaml:"metadata"`
	ContextDefaults    *contextDefaultsDoc     `yaml:"context_defaults"`
	ValidationDefaults *validationDoc          `yaml:"validation_defaults"`
	StrategyTemplates  map[string]*templateDoc `yaml:"strategy_templates"`
	Selectors          map[string]*selectorDoc `yaml:"selectors"`
}

type metadataDoc struct {
	Version     string `yaml:"version"`
	LastUpdated any    `yaml:"last_updated"`
	Description string `yaml:"description"`
}

type contextDefaultsDoc struct {
	PageType     *string `yaml:"page_type"`
	WaitStrategy *string `yaml:"wait_strategy"`
	Timeout      *int    `yaml:"timeout"`
	Section      *string `yaml:"section"`
}

type validationDoc struct {
	Required  *bool   `yaml:"required"`
	Type      *string `yaml:"type"`
	MinLength *int    `yaml:"min_length"`
	MaxLength *int    `yaml:"max_length"`
	Pattern   *string `yaml:"pattern"`
}

type confidenceDoc struct {
	Threshold *float64 `yaml:"threshold"`
	Weight    *float64 `yaml:"weight"`
}

type templateDoc struct {
	Type       string         `yaml:"type"`
	Parameters map[string]any `yaml:"parameters"`
	Validation *validationDoc `yaml:"validation"`
	Confidence *confidenceDoc `yaml:"confidence"`
}

type strategyDoc struct {
	Type       string         `yaml:"type"`
	Template   string         `yaml:"template"`
	Parameters map[string]any `yaml:"parameters"`
	Priority   int            `yaml:"priority"`
}

type selectorDoc struct {
	Description string         `yaml:"description"`
	Context     string         `yaml:"context"`
	Strategies  []strategyDoc  `yaml:"strategies"`
	Validation  *validationDoc `yaml:"validation"`
	Confidence  *confidenceDoc `yaml:"confidence"`
}

// parentDoc is the minimal shape read by ParentRef.
type parentDoc struct {
	Inherits string `yaml:"inherits"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts a YAML timestamp already decoded to time.Time or
// any of timestampLayouts.
func parseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTimestampString(v)
	default:
		return time.Time{}, fmt.Errorf("last_updated must be a timestamp, got %T", raw)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// convert turns a decoded document into typed entities, collecting shape
// issues that the struct decoder cannot express.
func (d *document) convert(cfg *selector.SelectorConfiguration) []selector.Issue {
	var issues []selector.Issue

	if d.Metadata != nil {
		md := &selector.Metadata{
			Version:     d.Metadata.Version,
			Description: d.Metadata.Description,
		}
		if d.Metadata.LastUpdated != nil {
			ts, err := parseTimestamp(d.Metadata.LastUpdated)
			if err != nil {
				issues = append(issues, selector.Issue{
					Field: "metadata.last_updated", Code: "shape", Message: err.Error(),
				})
			}
			md.LastUpdated = ts
		}
		cfg.Metadata = md
	}

	if cd := d.ContextDefaults; cd != nil {
		out := &selector.ContextDefaults{
			PageType: cd.PageType,
			Timeout:  cd.Timeout,
			Section:  cd.Section,
		}
		if cd.WaitStrategy != nil {
			w := selector.WaitStrategy(*cd.WaitStrategy)
			out.WaitStrategy = &w
		}
		cfg.ContextDefaults = out
	}

	cfg.ValidationDefaults = d.ValidationDefaults.rule()

	cfg.Templates = make(map[string]*selector.StrategyTemplate, len(d.StrategyTemplates))
	for name, t := range d.StrategyTemplates {
		if t == nil {
			cfg.Templates[name] = nil
			continue
		}
		cfg.Templates[name] = &selector.StrategyTemplate{
			Name:       name,
			Type:       selector.StrategyType(t.Type),
			Parameters: t.Parameters,
			Validation: t.Validation.rule(),
			Confidence: t.Confidence.config(),
		}
	}

	cfg.Selectors = make(map[string]*selector.SemanticSelector, len(d.Selectors))
	for name, s := range d.Selectors {
		if s == nil {
			cfg.Selectors[name] = nil
			continue
		}
		sel := &selector.SemanticSelector{
			Name:        name,
			Description: s.Description,
			Context:     s.Context,
			Validation:  s.Validation.rule(),
			Confidence:  s.Confidence.config(),
			Strategies:  make([]selector.StrategyDefinition, 0, len(s.Strategies)),
		}
		for _, st := range s.Strategies {
			if st.Template != "" {
				sel.Strategies = append(sel.Strategies, selector.NewTemplateRef(
					st.Template, st.Parameters, st.Priority, selector.StrategyType(st.Type)))
				continue
			}
			sel.Strategies = append(sel.Strategies, selector.NewInline(
				selector.StrategyType(st.Type), st.Parameters, st.Priority))
		}
		cfg.Selectors[name] = sel
	}

	return issues
}

func (v *validationDoc) rule() *selector.ValidationRule {
	if v == nil {
		return nil
	}
	r := &selector.ValidationRule{
		Required:  v.Required,
		MinLength: v.MinLength,
		MaxLength: v.MaxLength,
		Pattern:   v.Pattern,
	}
	if v.Type != nil {
		t := selector.ValueType(*v.Type)
		r.Type = &t
	}
	return r
}

func (c *confidenceDoc) config() *selector.ConfidenceConfig {
	if c == nil {
		return nil
	}
	return &selector.ConfidenceConfig{Threshold: c.Threshold, Weight: c.Weight}
}
