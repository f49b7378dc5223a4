package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"golang.org/x/mod/semver"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/shared/utils"
)

// Issue codes.
const (
	CodeRequired        = "required"
	CodeInvalidVersion  = "invalid_version"
	CodeInvalidEnum     = "invalid_enum"
	CodeOutOfRange      = "out_of_range"
	CodeInvalidPattern  = "invalid_pattern"
	CodeInvalidName     = "invalid_name"
	CodeInvalidContext  = "invalid_context"
	CodePriorityOrder   = "priority_order"
	CodeUnsupportedType = "unsupported_type"
	CodeMissingParam    = "missing_parameter"
	CodeTypeMismatch    = "type_mismatch"
	CodeCompile         = "compile"
	CodeEmpty           = "empty"
	CodeShape           = "shape"
)

// Result is the outcome of validating one configuration.
type Result struct {
	IsValid  bool             `json:"is_valid"`
	Errors   []selector.Issue `json:"errors"`
	Warnings []selector.Issue `json:"warnings"`
}

// Err returns a *selector.SchemaValidationError when the result is invalid.
func (r Result) Err(path string) error {
	if r.IsValid {
		return nil
	}
	return &selector.SchemaValidationError{Path: path, Issues: r.Errors, Warnings: r.Warnings}
}

// Options configures a Validator.
type Options struct {
	// Strict promotes warnings to errors.
	Strict bool
}

// Validator validates selector configurations. Safe for concurrent use.
type Validator struct {
	strict bool
}

// New creates a validator.
func New(opts Options) *Validator {
	return &Validator{strict: opts.Strict}
}

// Strict reports whether warnings are promoted to errors.
func (v *Validator) Strict() bool {
	return v.strict
}

// report accumulates findings for one pass.
type report struct {
	errors   []selector.Issue
	warnings []selector.Issue
}

func (r *report) errorf(field, code, format string, args ...any) {
	r.errors = append(r.errors, selector.Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *report) warnf(field, code, format string, args ...any) {
	r.warnings = append(r.warnings, selector.Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Validate checks cfg and returns every finding. It never panics on a
// partially populated configuration.
func (v *Validator) Validate(cfg *selector.SelectorConfiguration) Result {
	r := &report{}
	if cfg == nil {
		r.errorf("", CodeRequired, "configuration is nil")
		return v.finish(r)
	}

	v.checkMetadata(r, cfg)
	if cfg.ContextDefaults != nil {
		v.checkContextDefaults(r, "context_defaults", cfg.ContextDefaults)
	}
	if cfg.ValidationDefaults != nil {
		v.checkRule(r, "validation_defaults", cfg.ValidationDefaults)
	}
	for _, name := range cfg.TemplateNames() {
		v.checkTemplate(r, "strategy_templates."+name, name, cfg.Templates[name])
	}
	for _, name := range cfg.SelectorNames() {
		v.checkSelector(r, "selectors."+name, name, cfg.Selectors[name], cfg.Templates)
	}

	if cfg.IsEmpty() {
		r.warnf("", CodeEmpty, "file defines no selectors, templates or defaults")
	}

	return v.finish(r)
}

func (v *Validator) finish(r *report) Result {
	errs := r.errors
	warnings := r.warnings
	if v.strict && len(warnings) > 0 {
		errs = append(errs, warnings...)
		warnings = nil
	}
	return Result{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

func (v *Validator) checkMetadata(r *report, cfg *selector.SelectorConfiguration) {
	md := cfg.Metadata
	if md == nil {
		if !cfg.IsMarker {
			r.errorf("metadata", CodeRequired, "metadata is required")
		}
		return
	}
	if md.Version == "" {
		r.errorf("metadata.version", CodeRequired, "version is required")
	} else if !ValidVersion(md.Version) {
		r.errorf("metadata.version", CodeInvalidVersion, "version %q is not MAJOR.MINOR.PATCH", md.Version)
	}
	if strings.TrimSpace(md.Description) == "" {
		r.errorf("metadata.description", CodeRequired, "description must not be empty")
	}
	if md.LastUpdated.IsZero() {
		r.warnf("metadata.last_updated", CodeRequired, "last_updated is not set")
	}
}

// ValidVersion reports whether version is a full semantic version, with or
// without a leading "v".
func ValidVersion(version string) bool {
	if !utils.SemverPattern.MatchString(version) {
		return false
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.IsValid(version)
}

func (v *Validator) checkContextDefaults(r *report, field string, d *selector.ContextDefaults) {
	if d.PageType != nil && !utils.IdentifierPattern.MatchString(*d.PageType) {
		r.errorf(field+".page_type", CodeInvalidName, "page_type %q must be a lowercase identifier", *d.PageType)
	}
	if d.WaitStrategy != nil && !d.WaitStrategy.Valid() {
		r.errorf(field+".wait_strategy", CodeInvalidEnum,
			"wait_strategy %q must be one of network_idle, domcontentloaded, load", *d.WaitStrategy)
	}
	if d.Timeout != nil && *d.Timeout <= 0 {
		r.errorf(field+".timeout", CodeOutOfRange, "timeout must be > 0, got %d", *d.Timeout)
	}
	if d.Section != nil && *d.Section != "" {
		if err := utils.ValidateContextPath(*d.Section); err != nil {
			r.errorf(field+".section", CodeInvalidContext, "%v", err)
		}
	}
}

func (v *Validator) checkRule(r *report, field string, rule *selector.ValidationRule) {
	if rule.Type != nil && !rule.Type.Valid() {
		r.errorf(field+".type", CodeInvalidEnum, "type %q is not supported", *rule.Type)
	}
	if rule.MinLength != nil && *rule.MinLength < 0 {
		r.errorf(field+".min_length", CodeOutOfRange, "min_length must be >= 0, got %d", *rule.MinLength)
	}
	if rule.MaxLength != nil && *rule.MaxLength < 0 {
		r.errorf(field+".max_length", CodeOutOfRange, "max_length must be >= 0, got %d", *rule.MaxLength)
	}
	if rule.MinLength != nil && rule.MaxLength != nil && *rule.MinLength > *rule.MaxLength {
		r.errorf(field, CodeOutOfRange, "min_length %d exceeds max_length %d", *rule.MinLength, *rule.MaxLength)
	}
	if rule.Pattern != nil {
		if _, err := regexp.Compile(*rule.Pattern); err != nil {
			r.errorf(field+".pattern", CodeInvalidPattern, "pattern does not compile: %v", err)
		}
	}
}

func (v *Validator) checkConfidence(r *report, field string, c *selector.ConfidenceConfig) {
	if c == nil {
		return
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 1) {
		r.errorf(field+".threshold", CodeOutOfRange, "threshold must be within [0,1], got %g", *c.Threshold)
	}
	if c.Weight != nil && *c.Weight <= 0 {
		r.errorf(field+".weight", CodeOutOfRange, "weight must be > 0, got %g", *c.Weight)
	}
}

func (v *Validator) checkTemplate(r *report, field, name string, t *selector.StrategyTemplate) {
	if t == nil {
		r.errorf(field, CodeRequired, "template body is empty")
		return
	}
	if !utils.SnakeCasePattern.MatchString(name) {
		r.errorf(field, CodeInvalidName, "template name %q must be snake_case", name)
	}
	v.checkStrategyBody(r, field, t.Type, t.Parameters)
	if t.Validation != nil {
		v.checkRule(r, field+".validation", t.Validation)
	}
	v.checkConfidence(r, field+".confidence", t.Confidence)
}

func (v *Validator) checkSelector(r *report, field, name string, s *selector.SemanticSelector, templates map[string]*selector.StrategyTemplate) {
	if s == nil {
		r.errorf(field, CodeRequired, "selector body is empty")
		return
	}
	if err := utils.ValidateSelectorName(name); err != nil {
		r.errorf(field, CodeInvalidName, "%v", err)
	}
	if strings.TrimSpace(s.Description) == "" {
		r.errorf(field+".description", CodeRequired, "description is required")
	}
	if s.Context == "" {
		r.errorf(field+".context", CodeRequired, "context is required")
	} else if err := utils.ValidateContextPath(s.Context); err != nil {
		r.errorf(field+".context", CodeInvalidContext, "%v", err)
	}

	if len(s.Strategies) == 0 {
		r.errorf(field+".strategies", CodeRequired, "at least one strategy is required")
	}
	v.checkPriorities(r, field+".strategies", s.Strategies)
	for i, def := range s.Strategies {
		v.checkStrategy(r, fmt.Sprintf("%s.strategies[%d]", field, i), def, templates)
	}

	if s.Validation != nil {
		v.checkRule(r, field+".validation", s.Validation)
	}
	v.checkConfidence(r, field+".confidence", s.Confidence)
}

func (v *Validator) checkPriorities(r *report, field string, defs []selector.StrategyDefinition) {
	seen := make(map[int]int, len(defs))
	prev := 0
	for i, def := range defs {
		if def.Priority < 1 {
			r.errorf(fmt.Sprintf("%s[%d].priority", field, i), CodeOutOfRange, "priority must be >= 1, got %d", def.Priority)
			continue
		}
		if j, dup := seen[def.Priority]; dup {
			r.errorf(fmt.Sprintf("%s[%d].priority", field, i), CodePriorityOrder,
				"priority %d duplicates strategies[%d]", def.Priority, j)
			continue
		}
		seen[def.Priority] = i
		if def.Priority < prev {
			r.errorf(fmt.Sprintf("%s[%d].priority", field, i), CodePriorityOrder,
				"priority %d is not ascending (previous %d)", def.Priority, prev)
		}
		prev = def.Priority
	}
}

func (v *Validator) checkStrategy(r *report, field string, def selector.StrategyDefinition, templates map[string]*selector.StrategyTemplate) {
	if !def.IsTemplateRef() {
		v.checkStrategyBody(r, field, def.Type, def.Parameters)
		return
	}

	if def.Template == "" {
		r.errorf(field+".template", CodeRequired, "template name is required")
		return
	}
	if def.Type != "" && !def.Type.Valid() {
		r.errorf(field+".type", CodeUnsupportedType, "strategy type %q is not supported", def.Type)
		return
	}

	// Templates defined elsewhere in the hierarchy are checked after
	// inheritance resolution.
	tmpl, local := templates[def.Template]
	if !local || tmpl == nil {
		return
	}
	if def.Type != "" && tmpl.Type != def.Type {
		r.errorf(field+".type", CodeTypeMismatch, "declared type %q does not match template %q type %q",
			def.Type, def.Template, tmpl.Type)
		return
	}
	if tmpl.Type.Valid() {
		v.checkParameters(r, field, tmpl.Type, selector.MergeParameters(tmpl.Parameters, def.Parameters))
	}
}

func (v *Validator) checkStrategyBody(r *report, field string, t selector.StrategyType, params map[string]any) {
	if t == "" {
		r.errorf(field+".type", CodeRequired, "strategy type is required")
		return
	}
	if !t.Valid() {
		r.errorf(field+".type", CodeUnsupportedType, "strategy type %q is not supported (want one of %s)",
			t, strings.Join(typeNames(), ", "))
		return
	}
	v.checkParameters(r, field, t, params)
}

func (v *Validator) checkParameters(r *report, field string, t selector.StrategyType, params map[string]any) {
	missing := t.MissingParameters(params)
	sort.Strings(missing)
	for _, key := range missing {
		r.errorf(field+".parameters."+key, CodeMissingParam, "%s strategy requires parameter %q", t, key)
	}
	if len(missing) > 0 {
		return
	}

	switch t {
	case selector.CSSSelector:
		expr, _ := params["selector"].(string)
		if _, err := cascadia.Compile(expr); err != nil {
			r.warnf(field+".parameters.selector", CodeCompile, "css selector %q does not compile: %v", expr, err)
		}
	case selector.XPath:
		expr, _ := params["expression"].(string)
		if _, err := xpath.Compile(expr); err != nil {
			r.warnf(field+".parameters.expression", CodeCompile, "xpath %q does not compile: %v", expr, err)
		}
	}
}

func typeNames() []string {
	types := selector.StrategyTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
