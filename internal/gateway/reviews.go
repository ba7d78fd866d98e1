package gateway

import (
	"context"
	"fmt"
	"strconv"
)

// Vote directions on the backend wire: 1 adds a helpfulness vote, 0 removes
// the caller's existing vote.
const (
	wireVoteAdd    = 1
	wireVoteRemove = 0
)

// ListBusinessReviews returns the reviews of one business together with
// replies and vote totals. A 404 means the business has no reviews yet and is
// reported as an empty list, not an error.
func (c *Client) ListBusinessReviews(ctx context.Context, businessID int64) ([]RatedReview, error) {
	var out []RatedReview
	resp, err := c.request().
		SetContext(ctx).
		SetResult(&out).
		Get("/review-replies/business/" + strconv.FormatInt(businessID, 10))
	if err := checkResponse(resp, err); err != nil {
		if IsNotFound(err) {
			return []RatedReview{}, nil
		}
		return nil, err
	}
	return out, nil
}

// ListSupervisorReviews returns the reviews of the businesses the token's
// supervisor owns.
func (c *Client) ListSupervisorReviews(ctx context.Context, token string) ([]RatedReview, error) {
	var out []RatedReview
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetResult(&out).
		Get("/review-replies/supervisor/reviews")
	if err := checkResponse(resp, err); err != nil {
		if IsNotFound(err) {
			return []RatedReview{}, nil
		}
		return nil, err
	}
	return out, nil
}

// ListAllReviews returns every review on the platform. Admin only.
func (c *Client) ListAllReviews(ctx context.Context, token string) ([]RatedReview, error) {
	var out []RatedReview
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetResult(&out).
		Get("/reviews/admin/all")
	if err := checkResponse(resp, err); err != nil {
		if IsNotFound(err) {
			return []RatedReview{}, nil
		}
		return nil, err
	}
	return out, nil
}

// UserVotes returns the review ids the user has already voted on.
func (c *Client) UserVotes(ctx context.Context, token string, userID int64) ([]UserVote, error) {
	var out []UserVote
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetQueryParam("user_id", strconv.FormatInt(userID, 10)).
		SetResult(&out).
		Get("/user-votes")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitVote adds or removes the caller's helpfulness vote on a review.
func (c *Client) SubmitVote(ctx context.Context, token string, reviewID int64, add bool) error {
	direction := wireVoteRemove
	if add {
		direction = wireVoteAdd
	}
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(map[string]any{
			"review_id": reviewID,
			"direction": direction,
		}).
		Post("/vote")
	return checkResponse(resp, err)
}

type CreateReviewInput struct {
	Rating      int    `json:"rating"`
	ReviewTitle string `json:"review_title"`
	ReviewText  string `json:"review_text"`
}

func (c *Client) CreateReview(ctx context.Context, token string, businessID int64, input CreateReviewInput) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(input).
		Post("/reviews/" + strconv.FormatInt(businessID, 10))
	return checkResponse(resp, err)
}

type UpdateReviewInput struct {
	Rating      *int    `json:"rating,omitempty"`
	ReviewTitle *string `json:"review_title,omitempty"`
	ReviewText  *string `json:"review_text,omitempty"`
}

func (c *Client) UpdateReview(ctx context.Context, token string, reviewID int64, input UpdateReviewInput) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(input).
		Patch("/reviews/" + strconv.FormatInt(reviewID, 10))
	return checkResponse(resp, err)
}

func (c *Client) DeleteReview(ctx context.Context, token string, reviewID int64) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		Delete("/reviews/" + strconv.FormatInt(reviewID, 10))
	return checkResponse(resp, err)
}

// CreateReply posts a supervisor reply on a review.
func (c *Client) CreateReply(ctx context.Context, token string, reviewID int64, text string) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(map[string]string{"reply_text": text}).
		Post(fmt.Sprintf("/review-replies/%d", reviewID))
	return checkResponse(resp, err)
}
