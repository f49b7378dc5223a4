package resolver

import (
	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

// Scoring holds the confidence heuristics. The defaults are empirical;
// tuning them changes scores but never the strategy order.
type Scoring struct {
	Base        float64                           `json:"base"`
	TypeWeights map[selector.StrategyType]float64 `json:"type_weights"`

	// ExactContextBonus applies when the matched entry's context is the
	// qualified request context; PageContextBonus when it is the page only.
	ExactContextBonus float64 `json:"exact_context_bonus"`
	PageContextBonus  float64 `json:"page_context_bonus"`

	// A strategy with priority p earns max(0, PriorityCeiling-p) * PriorityStep.
	PriorityCeiling int     `json:"priority_ceiling"`
	PriorityStep    float64 `json:"priority_step"`
}

// DefaultScoring returns the standard heuristics.
func DefaultScoring() Scoring {
	return Scoring{
		Base: 0.5,
		TypeWeights: map[selector.StrategyType]float64{
			selector.AttributeMatch:  0.9,
			selector.RoleBased:       0.9,
			selector.TextAnchor:      0.8,
			selector.DOMRelationship: 0.8,
			selector.CSSSelector:     0.7,
			selector.XPath:           0.6,
		},
		ExactContextBonus: 0.2,
		PageContextBonus:  0.1,
		PriorityCeiling:   5,
		PriorityStep:      0.05,
	}
}

// ContextMatch grades how closely the matched context fits the request.
type ContextMatch int

const (
	MatchNone ContextMatch = iota
	MatchPage
	MatchExact
)

func (m ContextMatch) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPage:
		return "page"
	default:
		return "none"
	}
}

// Strategy scores one strategy, clamped to [0,1]. threshold is the
// selector's declared threshold, or 0.
func (s Scoring) Strategy(t selector.StrategyType, priority int, match ContextMatch, threshold float64) float64 {
	score := s.Base + s.TypeWeights[t] + s.contextBonus(match) + s.priorityBonus(priority) + threshold
	return clamp(score)
}

func (s Scoring) contextBonus(m ContextMatch) float64 {
	switch m {
	case MatchExact:
		return s.ExactContextBonus
	case MatchPage:
		return s.PageContextBonus
	default:
		return 0
	}
}

func (s Scoring) priorityBonus(priority int) float64 {
	return float64(max(0, s.PriorityCeiling-priority)) * s.PriorityStep
}

func clamp(v float64) float64 {
	return min(1, max(0, v))
}
