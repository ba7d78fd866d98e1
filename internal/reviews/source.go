package reviews

import (
	"context"
	"fmt"

	"avisio/api/internal/gateway"
)

// Source is the backend surface the page needs. The gateway implements it;
// tests substitute fakes.
type Source interface {
	FetchReviews(ctx context.Context, scope Scope, viewer Viewer) ([]gateway.RatedReview, error)
	FetchVotes(ctx context.Context, viewer Viewer) ([]int64, error)
	SubmitVote(ctx context.Context, viewer Viewer, reviewID int64, add bool) error
}

type GatewaySource struct {
	client *gateway.Client
}

func NewGatewaySource(client *gateway.Client) *GatewaySource {
	return &GatewaySource{client: client}
}

func (s *GatewaySource) FetchReviews(ctx context.Context, scope Scope, viewer Viewer) ([]gateway.RatedReview, error) {
	switch scope.Kind {
	case ScopeBusiness:
		return s.client.ListBusinessReviews(ctx, scope.BusinessID)
	case ScopeSupervisor:
		return s.client.ListSupervisorReviews(ctx, viewer.Token)
	case ScopeAdmin:
		return s.client.ListAllReviews(ctx, viewer.Token)
	default:
		return nil, fmt.Errorf("unknown scope kind %q", scope.Kind)
	}
}

func (s *GatewaySource) FetchVotes(ctx context.Context, viewer Viewer) ([]int64, error) {
	votes, err := s.client.UserVotes(ctx, viewer.Token, viewer.UserID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(votes))
	for _, v := range votes {
		ids = append(ids, v.ReviewID)
	}
	return ids, nil
}

func (s *GatewaySource) SubmitVote(ctx context.Context, viewer Viewer, reviewID int64, add bool) error {
	return s.client.SubmitVote(ctx, viewer.Token, reviewID, add)
}
