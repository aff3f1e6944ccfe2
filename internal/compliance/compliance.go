// Package compliance is the boundary to the fraud/compliance
// collaborator consulted before capture.
package compliance

import (
	"context"

	"github.com/quantapay/gateway/internal/domain"
)

type Recommendation string

const (
	RecommendAuthorize Recommendation = "authorize"
	RecommendReview    Recommendation = "review"
	RecommendDecline   Recommendation = "decline"
)

type Screener interface {
	Screen(ctx context.Context, p *domain.Payment) (Recommendation, error)
}

// StaticScreener always returns the same recommendation. The zero
// value authorizes everything, which is the default wiring when no
// real screening service is configured.
type StaticScreener struct {
	Recommendation Recommendation
}

func (s StaticScreener) Screen(ctx context.Context, p *domain.Payment) (Recommendation, error) {
	if s.Recommendation == "" {
		return RecommendAuthorize, nil
	}
	return s.Recommendation, nil
}
