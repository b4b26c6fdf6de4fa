package matching

import (
	"github.com/portside-labs/portside/internal/domain"
)

// Thresholds are the two classification cut points. They are
// configuration so matching behavior can be tuned without redeploying
// the scorer.
type Thresholds struct {
	AutoMatch float64
	Review    float64
}

// DefaultThresholds returns the tuned defaults: a bare free-text hit
// (0.20) lands in the review band, email + subject (0.70) auto-matches.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoMatch: 0.70, Review: 0.20}
}

// Validate rejects threshold configurations that would break the state
// model (auto-match must sit strictly above review).
func (t Thresholds) Validate() error {
	if t.AutoMatch <= t.Review {
		return domain.NewDomainError(domain.ErrCodeValidation, "auto-match threshold must be greater than review threshold")
	}
	if t.AutoMatch < 0 || t.AutoMatch > 1 || t.Review < 0 || t.Review > 1 {
		return domain.NewDomainError(domain.ErrCodeValidation, "classification thresholds must be within [0,1]")
	}
	return nil
}

// Classifier maps confidence scores to match statuses.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(thresholds Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify maps a score to a match status. Monotonic: a higher score
// never yields a lower-confidence status.
func (c *Classifier) Classify(score float64) domain.MatchStatus {
	switch {
	case score >= c.thresholds.AutoMatch:
		return domain.MatchStatusAutoMatched
	case score >= c.thresholds.Review:
		return domain.MatchStatusPendingReview
	default:
		return domain.MatchStatusNotFound
	}
}
