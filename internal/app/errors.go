package app

import (
	"errors"
	"fmt"
	"net/http"

	"avisio/api/internal/gateway"
	"avisio/api/internal/reviews"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func authMissing() *DomainError {
	return domainError(http.StatusUnauthorized, "AUTH_MISSING", "You must be logged in to do that", nil)
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

// mapError translates core and collaborator errors into the wire taxonomy.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var fetchErr *reviews.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway, "FETCH_FAILED", fetchErr.Message, nil
	}

	switch {
	case errors.Is(err, reviews.ErrAuthMissing):
		return http.StatusUnauthorized, "AUTH_MISSING", "You must be logged in to vote", nil
	case errors.Is(err, reviews.ErrSelfVote):
		return http.StatusForbidden, "SELF_VOTE", "You cannot vote on your own review", nil
	case errors.Is(err, reviews.ErrVoteInFlight):
		return http.StatusConflict, "VOTE_IN_FLIGHT", "Your previous vote on this review is still being saved", nil
	case errors.Is(err, reviews.ErrUnknownReview):
		return http.StatusNotFound, "REVIEW_NOT_FOUND", "Review not found in the current list", nil
	}

	var statusErr *gateway.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.Detail
		if message == "" {
			message = "The review service rejected the request"
		}
		return statusErr.Code, "BACKEND_ERROR", message, nil
	}

	return http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil
}
