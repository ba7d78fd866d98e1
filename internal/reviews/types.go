// Package reviews owns the review list a page renders: aggregation of
// reviews, replies, and vote totals, the viewer's vote ownership, and the
// optimistic vote protocol. Each page view gets its own Page; nothing here is
// shared across sessions.
package reviews

import (
	"errors"
	"fmt"

	"avisio/api/internal/gateway"
)

type ScopeKind string

const (
	ScopeBusiness   ScopeKind = "business"
	ScopeSupervisor ScopeKind = "supervisor"
	ScopeAdmin      ScopeKind = "admin"
)

// Scope identifies which bounded review list a page shows.
type Scope struct {
	Kind       ScopeKind
	BusinessID int64
}

func BusinessScope(businessID int64) Scope {
	return Scope{Kind: ScopeBusiness, BusinessID: businessID}
}

func SupervisorScope() Scope { return Scope{Kind: ScopeSupervisor} }

func AdminScope() Scope { return Scope{Kind: ScopeAdmin} }

func (s Scope) Key() string {
	if s.Kind == ScopeBusiness {
		return fmt.Sprintf("business:%d", s.BusinessID)
	}
	return string(s.Kind)
}

// Viewer is the authenticated user behind a page, or the zero value for
// anonymous visitors.
type Viewer struct {
	UserID   int64
	Username string
	Role     string
	Token    string
}

func (v Viewer) Authenticated() bool { return v.Token != "" }

type Direction string

const (
	DirectionAdd    Direction = "add"
	DirectionRemove Direction = "remove"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionAdd, DirectionRemove:
		return Direction(raw), nil
	default:
		return "", fmt.Errorf("direction must be %q or %q", DirectionAdd, DirectionRemove)
	}
}

// View is one rendered row: the review with its reply, vote state scoped to
// the viewer, and the AI label when the page annotates.
type View struct {
	Review         gateway.Review `json:"review"`
	Reply          *gateway.Reply `json:"reply,omitempty"`
	VotesCount     int            `json:"votes_count"`
	ViewerHasVoted bool           `json:"viewer_has_voted"`
	Label          string         `json:"label,omitempty"`
	IsAnnotating   bool           `json:"is_annotating,omitempty"`
}

// Notice is a transient, user-visible message queued by background work
// (a failed vote reconciliation, for instance) and drained on the next
// snapshot.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Snapshot struct {
	Reviews    []View   `json:"reviews"`
	Refreshing bool     `json:"refreshing"`
	Notices    []Notice `json:"notices,omitempty"`
}

var (
	ErrAuthMissing   = errors.New("authentication required")
	ErrSelfVote      = errors.New("cannot vote on your own review")
	ErrUnknownReview = errors.New("review not in the current list")
	ErrVoteInFlight  = errors.New("a vote for this review is already in flight")
)

// FetchError means the primary review fetch failed. It carries the message
// the page surfaces next to its retry affordance.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
