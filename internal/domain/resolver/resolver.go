package resolver

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/infrastructure/monitoring"
)

// Source supplies index lookups and inheritance chains. The registry
// implements it.
type Source interface {
	Lookup(name, context string) (*selector.IndexEntry, error)
	Chain(path string) (*selector.InheritanceChain, error)
}

// Options configures a Resolver.
type Options struct {
	Scoring Scoring
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Resolver builds resolution plans.
type Resolver struct {
	source  Source
	scoring Scoring
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// New creates a resolver over source. A zero Scoring takes the defaults.
func New(source Source, opts Options) *Resolver {
	if opts.Scoring.TypeWeights == nil {
		opts.Scoring = DefaultScoring()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		source:  source,
		scoring: opts.Scoring,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// Scoring returns the heuristics in use.
func (r *Resolver) Scoring() Scoring {
	return r.scoring
}

// Resolve finds name for rc and returns its plan.
//
// The qualified context (page.section, or page.section.tab) is tried
// first, then the page alone. Template references resolve through the
// source file's inheritance chain.
func (r *Resolver) Resolve(name string, rc selector.ResolutionContext) (*selector.SelectorResult, error) {
	start := r.now()

	result, match, err := r.resolve(name, rc)
	elapsed := r.now().Sub(start)

	outcome := monitoring.ResolveFallback
	var confidence float64
	switch {
	case err != nil:
		outcome = monitoring.ResolveDependency
		var nf *selector.NotFoundError
		if errors.As(err, &nf) {
			outcome = monitoring.ResolveNotFound
		}
	case match == MatchExact:
		outcome = monitoring.ResolveExact
	}
	if result != nil {
		result.Duration = elapsed
		confidence = result.Confidence
	}
	if r.metrics != nil {
		r.metrics.RecordResolution(outcome, confidence, elapsed)
	}

	if err != nil {
		r.logger.Debug("Resolution failed",
			zap.String("name", name),
			zap.String("context", rc.Qualified()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (r *Resolver) resolve(name string, rc selector.ResolutionContext) (*selector.SelectorResult, ContextMatch, error) {
	page := rc.Page()
	qualified := rc.Qualified()

	entry, used, err := r.lookup(name, qualified, page)
	if err != nil {
		return nil, MatchNone, err
	}

	match := MatchNone
	switch entry.Context {
	case qualified:
		match = MatchExact
	case page:
		match = MatchPage
	default:
		// page.section when a tab narrowed the request
		if rc.CurrentSection != "" && entry.Context == page+"."+rc.CurrentSection {
			match = MatchExact
		}
	}

	chain, err := r.source.Chain(entry.SourceFile)
	if err != nil {
		return nil, match, fmt.Errorf("resolve %s: %w", name, err)
	}

	sel := entry.Selector
	threshold, hasThreshold := sel.Threshold()

	defs := append([]selector.StrategyDefinition(nil), sel.Strategies...)
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].Priority < defs[j].Priority })

	var applied []string
	strategies := make([]selector.ResolvedStrategy, 0, len(defs))
	for _, def := range defs {
		rs, err := r.expand(sel.Name, entry.SourceFile, def, chain)
		if err != nil {
			return nil, match, err
		}
		if rs.Template != "" && !slices.Contains(applied, rs.Template) {
			applied = append(applied, rs.Template)
		}
		rs.Confidence = r.scoring.Strategy(rs.Type, rs.Priority, match, threshold)
		strategies = append(strategies, rs)
	}

	overall := Overall(strategies)
	if hasThreshold && overall < threshold {
		overall = threshold
	}

	result := &selector.SelectorResult{
		Selector:         sel,
		SourceFile:       entry.SourceFile,
		Strategies:       strategies,
		Confidence:       overall,
		ContextUsed:      used,
		MatchedContext:   entry.Context,
		TemplatesApplied: applied,
		WaitStrategy:     chain.ContextDefaults.WaitStrategy,
		Timeout:          chain.ContextDefaults.Timeout,
	}
	if rule := chain.ValidationDefaults.Overlay(sel.Validation); !rule.IsZero() {
		result.Validation = &rule
	}
	return result, match, nil
}

// lookup tries the qualified context, then the page alone.
func (r *Resolver) lookup(name, qualified, page string) (*selector.IndexEntry, string, error) {
	entry, err := r.source.Lookup(name, qualified)
	if err == nil {
		return entry, qualified, nil
	}
	var nf *selector.NotFoundError
	if !errors.As(err, &nf) || page == qualified {
		return nil, "", err
	}

	entry, err = r.source.Lookup(name, page)
	if err != nil {
		if errors.As(err, &nf) {
			return nil, "", &selector.NotFoundError{Name: name, Context: qualified}
		}
		return nil, "", err
	}
	return entry, page, nil
}

// expand turns a definition into a concrete strategy. Template overrides
// win over template parameters.
func (r *Resolver) expand(name, source string, def selector.StrategyDefinition, chain *selector.InheritanceChain) (selector.ResolvedStrategy, error) {
	if !def.IsTemplateRef() {
		return selector.ResolvedStrategy{
			Type:       def.Type,
			Parameters: selector.MergeParameters(nil, def.Parameters),
			Priority:   def.Priority,
		}, nil
	}

	tmpl, ok := chain.Template(def.Template)
	if !ok || tmpl == nil {
		return selector.ResolvedStrategy{}, &selector.DependencyError{
			Selector:   name,
			Template:   def.Template,
			SourceFile: source,
			Reason:     "template not found in inheritance chain",
		}
	}
	if def.Type != "" && def.Type != tmpl.Type {
		return selector.ResolvedStrategy{}, &selector.DependencyError{
			Selector:   name,
			Template:   def.Template,
			SourceFile: source,
			Reason:     fmt.Sprintf("declared type %s does not match template type %s", def.Type, tmpl.Type),
		}
	}

	return selector.ResolvedStrategy{
		Type:       tmpl.Type,
		Parameters: selector.MergeParameters(tmpl.Parameters, def.Parameters),
		Priority:   def.Priority,
		Template:   def.Template,
	}, nil
}

// Overall is the weighted mean of the strategy confidences, strategy i
// weighted 1/(i+1).
func Overall(strategies []selector.ResolvedStrategy) float64 {
	if len(strategies) == 0 {
		return 0
	}
	values := make([]float64, len(strategies))
	weights := make([]float64, len(strategies))
	for i, s := range strategies {
		values[i] = s.Confidence
		weights[i] = 1 / float64(i+1)
	}
	return clamp(stat.Mean(values, weights))
}
