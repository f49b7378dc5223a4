package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

func ptr[T any](v T) *T { return &v }

func validConfig() *selector.SelectorConfiguration {
	return &selector.SelectorConfiguration{
		Path: "/sites/shop/main/login.yaml",
		Metadata: &selector.Metadata{
			Version:     "1.2.0",
			LastUpdated: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Description: "login page selectors",
		},
		ContextDefaults: &selector.ContextDefaults{
			PageType:     ptr("auth"),
			WaitStrategy: ptr(selector.WaitNetworkIdle),
			Timeout:      ptr(5000),
		},
		Templates: map[string]*selector.StrategyTemplate{
			"button_by_text": {
				Name:       "button_by_text",
				Type:       selector.TextAnchor,
				Parameters: map[string]any{"text": "Submit"},
			},
		},
		Selectors: map[string]*selector.SemanticSelector{
			"login_button": {
				Name:        "login_button",
				Description: "primary login button",
				Context:     "auth.login",
				Strategies: []selector.StrategyDefinition{
					selector.NewInline(selector.CSSSelector, map[string]any{"selector": "button#login"}, 1),
					selector.NewTemplateRef("button_by_text", map[string]any{"text": "Log in"}, 2, ""),
				},
			},
		},
	}
}

func codes(issues []selector.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func TestValidateValidConfig(t *testing.T) {
	res := New(Options{}).Validate(validConfig())

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.Err("x"))
}

func TestValidateAccumulatesEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Metadata.Version = "1.0"
	cfg.Metadata.Description = ""
	cfg.ContextDefaults.Timeout = ptr(0)
	cfg.ContextDefaults.WaitStrategy = ptr(selector.WaitStrategy("forever"))
	cfg.ValidationDefaults = &selector.ValidationRule{
		MinLength: ptr(10),
		MaxLength: ptr(2),
		Pattern:   ptr("(["),
	}

	res := New(Options{}).Validate(cfg)

	require.False(t, res.IsValid)
	assert.Subset(t, codes(res.Errors), []string{
		CodeInvalidVersion, CodeRequired, CodeOutOfRange, CodeInvalidEnum, CodeInvalidPattern,
	})
	assert.GreaterOrEqual(t, len(res.Errors), 6)

	err := res.Err(cfg.Path)
	var schemaErr *selector.SchemaValidationError
	require.True(t, errors.As(err, &schemaErr))
	assert.Len(t, schemaErr.Issues, len(res.Errors))
	assert.True(t, errors.Is(err, selector.ErrConfiguration))
}

func TestValidateSelectorRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *selector.SemanticSelector)
		code   string
		field  string
	}{
		{
			name:   "no strategies",
			mutate: func(s *selector.SemanticSelector) { s.Strategies = nil },
			code:   CodeRequired,
			field:  "selectors.login_button.strategies",
		},
		{
			name:   "missing description",
			mutate: func(s *selector.SemanticSelector) { s.Description = " " },
			code:   CodeRequired,
			field:  "selectors.login_button.description",
		},
		{
			name:   "missing context",
			mutate: func(s *selector.SemanticSelector) { s.Context = "" },
			code:   CodeRequired,
			field:  "selectors.login_button.context",
		},
		{
			name:   "bad context segment",
			mutate: func(s *selector.SemanticSelector) { s.Context = "auth..login" },
			code:   CodeInvalidContext,
			field:  "selectors.login_button.context",
		},
		{
			name: "duplicate priority",
			mutate: func(s *selector.SemanticSelector) {
				s.Strategies[1].Priority = 1
			},
			code:  CodePriorityOrder,
			field: "selectors.login_button.strategies[1].priority",
		},
		{
			name: "descending priority",
			mutate: func(s *selector.SemanticSelector) {
				s.Strategies[0].Priority = 3
			},
			code:  CodePriorityOrder,
			field: "selectors.login_button.strategies[1].priority",
		},
		{
			name: "zero priority",
			mutate: func(s *selector.SemanticSelector) {
				s.Strategies[0].Priority = 0
			},
			code:  CodeOutOfRange,
			field: "selectors.login_button.strategies[0].priority",
		},
		{
			name: "unsupported type",
			mutate: func(s *selector.SemanticSelector) {
				s.Strategies[0] = selector.NewInline("shadow_dom", map[string]any{"selector": "x"}, 1)
			},
			code:  CodeUnsupportedType,
			field: "selectors.login_button.strategies[0].type",
		},
		{
			name: "missing required parameter",
			mutate: func(s *selector.SemanticSelector) {
				s.Strategies[0] = selector.NewInline(selector.AttributeMatch, map[string]any{"attribute": "data-test"}, 1)
			},
			code:  CodeMissingParam,
			field: "selectors.login_button.strategies[0].parameters.value",
		},
		{
			name: "threshold out of range",
			mutate: func(s *selector.SemanticSelector) {
				s.Confidence = &selector.ConfidenceConfig{Threshold: ptr(1.5)}
			},
			code:  CodeOutOfRange,
			field: "selectors.login_button.confidence.threshold",
		},
		{
			name: "non-positive weight",
			mutate: func(s *selector.SemanticSelector) {
				s.Confidence = &selector.ConfidenceConfig{Weight: ptr(0.0)}
			},
			code:  CodeOutOfRange,
			field: "selectors.login_button.confidence.weight",
		},
		{
			name: "declared type disagrees with local template",
			mutate: func(s *selector.SemanticSelector) {
				s.Strategies[1] = selector.NewTemplateRef("button_by_text", nil, 2, selector.XPath)
			},
			code:  CodeTypeMismatch,
			field: "selectors.login_button.strategies[1].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg.Selectors["login_button"])

			res := New(Options{}).Validate(cfg)

			require.False(t, res.IsValid)
			found := false
			for _, issue := range res.Errors {
				if issue.Code == tt.code && issue.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected %s at %s, got %v", tt.code, tt.field, res.Errors)
		})
	}
}

func TestValidateSelectorNameMustBeSnakeCase(t *testing.T) {
	cfg := validConfig()
	sel := cfg.Selectors["login_button"]
	delete(cfg.Selectors, "login_button")
	cfg.Selectors["LoginButton"] = sel

	res := New(Options{}).Validate(cfg)

	require.False(t, res.IsValid)
	assert.Contains(t, codes(res.Errors), CodeInvalidName)
}

func TestValidateInheritedTemplateRefIsNotAnError(t *testing.T) {
	cfg := validConfig()
	cfg.Selectors["login_button"].Strategies[1] = selector.NewTemplateRef("defined_in_parent", nil, 2, "")

	res := New(Options{}).Validate(cfg)

	assert.True(t, res.IsValid, "%v", res.Errors)
}

func TestValidateLocalTemplateRefChecksMergedParameters(t *testing.T) {
	cfg := validConfig()
	cfg.Templates["button_by_text"].Parameters = map[string]any{}
	cfg.Selectors["login_button"].Strategies[1] = selector.NewTemplateRef("button_by_text", nil, 2, "")

	res := New(Options{}).Validate(cfg)

	require.False(t, res.IsValid)
	assert.Contains(t, codes(res.Errors), CodeMissingParam)
}

func TestValidateCompileFailuresAreWarnings(t *testing.T) {
	cfg := validConfig()
	cfg.Selectors["login_button"].Strategies = []selector.StrategyDefinition{
		selector.NewInline(selector.CSSSelector, map[string]any{"selector": "div[[["}, 1),
		selector.NewInline(selector.XPath, map[string]any{"expression": "//div[@id="}, 2),
	}

	res := New(Options{}).Validate(cfg)
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{CodeCompile, CodeCompile}, codes(res.Warnings))

	strict := New(Options{Strict: true}).Validate(cfg)
	assert.False(t, strict.IsValid)
	assert.Empty(t, strict.Warnings)
	assert.Equal(t, []string{CodeCompile, CodeCompile}, codes(strict.Errors))
}

func TestValidateMetadataOptionalForMarkers(t *testing.T) {
	cfg := &selector.SelectorConfiguration{
		Path:     "/sites/shop/_context.yaml",
		IsMarker: true,
		ContextDefaults: &selector.ContextDefaults{
			Timeout: ptr(10000),
		},
	}

	res := New(Options{}).Validate(cfg)
	assert.True(t, res.IsValid, "%v", res.Errors)

	cfg.IsMarker = false
	res = New(Options{}).Validate(cfg)
	assert.False(t, res.IsValid)
}

func TestValidateEmptyFileWarns(t *testing.T) {
	cfg := &selector.SelectorConfiguration{Path: "/x/_context.yaml", IsMarker: true}

	res := New(Options{}).Validate(cfg)

	assert.True(t, res.IsValid)
	assert.Equal(t, []string{CodeEmpty}, codes(res.Warnings))
}

func TestValidateNilNeverPanics(t *testing.T) {
	v := New(Options{})

	assert.NotPanics(t, func() {
		res := v.Validate(nil)
		assert.False(t, res.IsValid)
	})

	cfg := validConfig()
	cfg.Selectors["broken"] = nil
	cfg.Templates["broken_tmpl"] = nil
	assert.NotPanics(t, func() {
		res := v.Validate(cfg)
		assert.False(t, res.IsValid)
	})
}

func TestValidVersion(t *testing.T) {
	for _, v := range []string{"1.0.0", "v2.3.4", "1.0.0-rc.1", "1.0.0+build.7"} {
		assert.True(t, ValidVersion(v), v)
	}
	for _, v := range []string{"", "1", "1.0", "one.two.three", "01.0.0"} {
		assert.False(t, ValidVersion(v), v)
	}
}
