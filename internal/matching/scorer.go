package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/portside-labs/portside/internal/domain"
)

// Weights tune how each signal contributes to a candidate's confidence
// score. They are configuration, not code: operators adjust them without
// touching the scorer.
type Weights struct {
	EmailMatch     float64
	OrderInSubject float64
	OrderInSearch  float64
	Recency        float64
	// RecencyHorizonDays is the age at which the recency contribution
	// decays to zero.
	RecencyHorizonDays int
	// StaleAfterDays marks a thread as suspect; StalePenalty is
	// subtracted from the combined score beyond it.
	StaleAfterDays int
	StalePenalty   float64
}

// DefaultWeights returns the tuned defaults. An email match alone
// (0.40) never clears the default auto-match threshold, and a stale
// thread loses 0.15 even when every other signal fires.
func DefaultWeights() Weights {
	return Weights{
		EmailMatch:         0.40,
		OrderInSubject:     0.30,
		OrderInSearch:      0.20,
		Recency:            0.10,
		RecencyHorizonDays: 90,
		StaleAfterDays:     180,
		StalePenalty:       0.15,
	}
}

// Scorer computes confidence scores for conversation candidates. It is
// deterministic and side-effect-free; the clock is injected so recency
// signals are testable.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return NewScorerWithClock(weights, func() time.Time { return time.Now().UTC() })
}

// NewScorerWithClock creates a Scorer with an explicit clock (for testing).
func NewScorerWithClock(weights Weights, now func() time.Time) *Scorer {
	return &Scorer{weights: weights, now: now}
}

// Score evaluates a single candidate against the order's identifying
// facts. The method records which search produced the candidate; a hit
// from a free-text order search is itself a signal.
func (s *Scorer) Score(c domain.Candidate, o domain.OrderFacts, method SearchMethod) domain.ScoringResult {
	breakdown := domain.ScoreBreakdown{
		EmailMatched:         emailMatched(c, o.CustomerEmail),
		OrderInSubject:       orderRefIn(c.Subject, o),
		OrderInSearch:        orderInSearch(c, o, method),
		DaysSinceLastMessage: s.daysSince(c.LastMessageAt),
	}

	score := 0.0
	if breakdown.EmailMatched {
		score += s.weights.EmailMatch
	}
	if breakdown.OrderInSubject {
		score += s.weights.OrderInSubject
	}
	if breakdown.OrderInSearch {
		score += s.weights.OrderInSearch
	}
	score += s.recencyBoost(breakdown.DaysSinceLastMessage)

	if days := breakdown.DaysSinceLastMessage; days != nil && s.weights.StaleAfterDays > 0 && *days > s.weights.StaleAfterDays {
		score -= s.weights.StalePenalty
	}

	return domain.ScoringResult{
		Candidate: c,
		Score:     clamp01(score),
		Breakdown: breakdown,
	}
}

// ScoreCandidates scores every candidate and returns them sorted by score
// descending. Ties keep the original search-result order, so the first
// result wins.
func (s *Scorer) ScoreCandidates(candidates []domain.Candidate, o domain.OrderFacts, method SearchMethod) []domain.ScoringResult {
	results := make([]domain.ScoringResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, s.Score(c, o, method))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func (s *Scorer) recencyBoost(days *int) float64 {
	if days == nil || s.weights.RecencyHorizonDays <= 0 {
		return 0
	}
	fraction := 1 - float64(*days)/float64(s.weights.RecencyHorizonDays)
	if fraction < 0 {
		fraction = 0
	}
	return s.weights.Recency * fraction
}

func (s *Scorer) daysSince(lastMessageAt *time.Time) *int {
	if lastMessageAt == nil {
		return nil
	}
	days := int(s.now().Sub(*lastMessageAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

func emailMatched(c domain.Candidate, customerEmail string) bool {
	email := strings.TrimSpace(customerEmail)
	if email == "" {
		return false
	}
	for _, handle := range c.Participants {
		if strings.EqualFold(strings.TrimSpace(handle), email) {
			return true
		}
	}
	return false
}

// orderRefIn reports whether the order number or name appears in the
// given text, case-insensitively. Substring checks only; the engine does
// no deeper language understanding.
func orderRefIn(text string, o domain.OrderFacts) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if number := strings.TrimSpace(o.OrderNumber); number != "" && strings.Contains(lower, strings.ToLower(number)) {
		return true
	}
	if name := strings.TrimSpace(o.OrderName); name != "" && strings.Contains(lower, strings.ToLower(name)) {
		return true
	}
	return false
}

func orderInSearch(c domain.Candidate, o domain.OrderFacts, method SearchMethod) bool {
	switch method {
	case SearchMethodOrderName, SearchMethodOrderNumber:
		// The candidate only surfaced because the free-text order search
		// matched it somewhere (body or participants).
		return true
	default:
		for _, handle := range c.Participants {
			if orderRefIn(handle, o) {
				return true
			}
		}
		return false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
