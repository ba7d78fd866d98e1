package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"avisio/api/internal/annotate"
	"avisio/api/internal/auth"
	"avisio/api/internal/config"
	"avisio/api/internal/gateway"
	"avisio/api/internal/rbac"
	"avisio/api/internal/reviews"
	"avisio/api/internal/session"
	"avisio/api/internal/util"
)

// Session is a resolved browser session: the opaque cookie id plus what the
// store holds for it.
type Session struct {
	ID string
	session.Data
}

func (s *Session) viewer() reviews.Viewer {
	if s == nil {
		return reviews.Viewer{}
	}
	return reviews.Viewer{
		UserID:   s.UserID,
		Username: s.Username,
		Role:     s.Role,
		Token:    s.Token,
	}
}

func (s *Session) role() rbac.Role {
	if s == nil {
		return rbac.Role("")
	}
	return rbac.Normalize(s.Role)
}

// backendAPI is the slice of the gateway the service calls directly. The
// review/vote surface goes through reviews.Source instead so page state can
// be tested against fakes.
type backendAPI interface {
	Login(ctx context.Context, username, password string) (gateway.LoginResult, error)
	Me(ctx context.Context, token string) (gateway.User, error)

	ListBusinesses(ctx context.Context, opts gateway.ListBusinessesOptions) ([]gateway.Business, error)
	GetBusiness(ctx context.Context, businessID int64) (gateway.Business, error)
	CreateBusiness(ctx context.Context, token string, input gateway.BusinessInput) error
	UpdateBusiness(ctx context.Context, token string, businessID int64, input gateway.BusinessInput) error
	DeleteBusiness(ctx context.Context, token string, businessID int64) error

	ListCategories(ctx context.Context) ([]gateway.Category, error)
	CreateCategory(ctx context.Context, token string, input gateway.CategoryInput) error
	UpdateCategory(ctx context.Context, token string, categoryID int64, input gateway.CategoryInput) error
	DeleteCategory(ctx context.Context, token string, categoryID int64) error

	ListUsers(ctx context.Context, token string) ([]gateway.User, error)
	DeleteUser(ctx context.Context, token string, userID int64) error

	CreateReview(ctx context.Context, token string, businessID int64, input gateway.CreateReviewInput) error
	UpdateReview(ctx context.Context, token string, reviewID int64, input gateway.UpdateReviewInput) error
	DeleteReview(ctx context.Context, token string, reviewID int64) error
	CreateReply(ctx context.Context, token string, reviewID int64, text string) error
}

// ClassifierFactory builds the classifier for one ruleset; each ruleset
// carries its own system prompt.
type ClassifierFactory func(rules annotate.Ruleset) annotate.Classifier

type Service struct {
	cfg           config.Config
	sessions      session.Store
	backend       backendAPI
	source        reviews.Source
	registry      *reviews.Registry
	newClassifier ClassifierFactory
}

func New(cfg config.Config, sessions session.Store, backend *gateway.Client, newClassifier ClassifierFactory) *Service {
	return &Service{
		cfg:           cfg,
		sessions:      sessions,
		backend:       backend,
		source:        reviews.NewGatewaySource(backend),
		registry:      reviews.NewRegistry(cfg.PageTTL),
		newClassifier: newClassifier,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// --- auth / session ---

// Login exchanges credentials for a backend token, resolves the profile, and
// opens a session. The session never outlives the backend token.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	result, err := s.backend.Login(ctx, username, password)
	if err != nil {
		if gateway.IsStatus(err, http.StatusUnauthorized) || gateway.IsStatus(err, http.StatusForbidden) {
			return nil, domainError(http.StatusUnauthorized, "LOGIN_FAILED", "Invalid username or password", nil)
		}
		return nil, fmt.Errorf("backend login: %w", err)
	}

	claims, err := auth.ParseClaims(result.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("backend returned unusable token: %w", err)
	}

	profile, err := s.backend.Me(ctx, result.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	expiresAt := claims.ExpiresAt
	if limit := time.Now().Add(s.cfg.SessionTTL); limit.Before(expiresAt) {
		expiresAt = limit
	}

	sess := &Session{
		ID: util.NewID("sess"),
		Data: session.Data{
			Token:    result.AccessToken,
			UserID:   profile.UserID,
			Username: profile.Username,
			Email:    profile.Email,
			Role:     string(rbac.Normalize(profile.Role)),
		},
	}
	if err := s.sessions.Save(ctx, auth.HashToken(sess.ID), sess.Data, expiresAt); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	if err := s.sessions.Revoke(ctx, auth.HashToken(sess.ID)); err != nil {
		log.Printf("revoke session: %v", err)
	}
	s.registry.DropSession(sess.ID)
}

// SessionFromID resolves a cookie value to a live session, or nil when the
// session is gone or the token it holds has expired.
func (s *Service) SessionFromID(ctx context.Context, id string) *Session {
	if id == "" {
		return nil
	}
	data, err := s.sessions.Lookup(ctx, auth.HashToken(id))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Printf("session lookup: %v", err)
		}
		return nil
	}
	if claims, err := auth.ParseClaims(data.Token); err != nil || time.Now().After(claims.ExpiresAt) {
		// Token went stale while the session entry survived.
		_ = s.sessions.Revoke(ctx, auth.HashToken(id))
		return nil
	}
	return &Session{ID: id, Data: data}
}

// Me proxies the profile lookup so role changes on the backend show up
// without a re-login.
func (s *Service) Me(ctx context.Context, sess *Session) (gateway.User, error) {
	if sess == nil {
		return gateway.User{}, authMissing()
	}
	return s.backend.Me(ctx, sess.Token)
}

// --- review pages (the core) ---

func (s *Service) businessPage(sess *Session, businessID int64) *reviews.Page {
	scope := reviews.BusinessScope(businessID)
	return s.registry.Get(sess.ID, scope, func() *reviews.Page {
		// The public business page carries no annotator.
		return reviews.NewPage(scope, sess.viewer(), s.source, nil)
	})
}

func (s *Service) annotatedPage(sess *Session, scope reviews.Scope, rules annotate.Ruleset) *reviews.Page {
	return s.registry.Get(sess.ID, scope, func() *reviews.Page {
		ann := annotate.New(rules, s.newClassifier(rules), s.cfg.AnnotationTimeout)
		return reviews.NewPage(scope, sess.viewer(), s.source, ann)
	})
}

// BusinessReviews returns the review list of one business, annotated with the
// viewer's vote ownership when a session exists. Anonymous visitors get a
// stateless load; authenticated ones get page state so optimistic votes
// survive across polls.
func (s *Service) BusinessReviews(ctx context.Context, sess *Session, businessID int64, refresh bool) (reviews.Snapshot, error) {
	if sess == nil {
		page := reviews.NewPage(reviews.BusinessScope(businessID), reviews.Viewer{}, s.source, nil)
		defer page.Close()
		if err := page.Load(ctx); err != nil {
			return reviews.Snapshot{}, err
		}
		return page.Snapshot(), nil
	}

	page := s.businessPage(sess, businessID)
	if !page.Loaded() || refresh {
		if err := page.Load(ctx); err != nil {
			return reviews.Snapshot{}, err
		}
	}
	return page.Snapshot(), nil
}

// Vote applies the optimistic vote protocol on the viewer's business page and
// returns the optimistic snapshot. Reconciliation runs in the background; a
// failure shows up as a notice on a later snapshot.
func (s *Service) Vote(ctx context.Context, sess *Session, businessID, reviewID int64, direction reviews.Direction) (reviews.Snapshot, error) {
	if sess == nil {
		return reviews.Snapshot{}, authMissing()
	}
	page := s.businessPage(sess, businessID)
	if !page.Loaded() {
		if err := page.Load(ctx); err != nil {
			return reviews.Snapshot{}, err
		}
	}
	if err := page.Vote(reviewID, direction); err != nil {
		return reviews.Snapshot{}, err
	}
	return page.Snapshot(), nil
}

// FeedbackFilter narrows the supervisor feedback view. Filtering is a pure
// projection over the page snapshot; it never touches annotator state, so
// filtered-out reviews keep their labels.
type FeedbackFilter struct {
	Label string // "urgent", "not urgent", "unknown"; empty or "all" disables
	Date  string // date-only string, compared for exact equality
}

func (f FeedbackFilter) matches(view reviews.View) bool {
	if f.Label != "" && f.Label != "all" && view.Label != f.Label {
		return false
	}
	if f.Date != "" && view.Review.CreatedAt.UTC().Format("2006-01-02") != f.Date {
		return false
	}
	return true
}

func filterSnapshot(snap reviews.Snapshot, filter FeedbackFilter) reviews.Snapshot {
	filtered := make([]reviews.View, 0, len(snap.Reviews))
	for _, view := range snap.Reviews {
		if filter.matches(view) {
			filtered = append(filtered, view)
		}
	}
	snap.Reviews = filtered
	return snap
}

// SupervisorFeedback returns the urgency-annotated reviews of the
// supervisor's businesses.
func (s *Service) SupervisorFeedback(ctx context.Context, sess *Session, filter FeedbackFilter, refresh bool) (reviews.Snapshot, error) {
	if sess == nil {
		return reviews.Snapshot{}, authMissing()
	}
	if !rbac.Can(sess.role(), rbac.ActionReadFeedback) {
		return reviews.Snapshot{}, forbidden()
	}
	page := s.annotatedPage(sess, reviews.SupervisorScope(), annotate.Urgency)
	if !page.Loaded() || refresh {
		if err := page.Load(ctx); err != nil {
			return reviews.Snapshot{}, err
		}
	}
	return filterSnapshot(page.Snapshot(), filter), nil
}

// AdminReviews returns every review, annotated with the moderation label.
func (s *Service) AdminReviews(ctx context.Context, sess *Session, refresh bool) (reviews.Snapshot, error) {
	if sess == nil {
		return reviews.Snapshot{}, authMissing()
	}
	if !rbac.Can(sess.role(), rbac.ActionModerateReviews) {
		return reviews.Snapshot{}, forbidden()
	}
	page := s.annotatedPage(sess, reviews.AdminScope(), annotate.Moderation)
	if !page.Loaded() || refresh {
		if err := page.Load(ctx); err != nil {
			return reviews.Snapshot{}, err
		}
	}
	return page.Snapshot(), nil
}

// --- review mutations (thin proxies with page invalidation) ---

// refreshPagesAfterMutation reloads every live page of the session so the
// next snapshot reflects the mutation. When the review text changed its
// annotation entry is dropped first, so the reload reclassifies it.
func (s *Service) refreshPagesAfterMutation(ctx context.Context, sess *Session, editedReviewID int64) {
	for _, page := range s.registry.ForSession(sess.ID) {
		if editedReviewID != 0 {
			page.Invalidate(editedReviewID)
		}
		if err := page.Load(ctx); err != nil {
			log.Printf("page refresh after mutation failed (%s): %v", page.Scope().Key(), err)
		}
	}
}

func (s *Service) SubmitReview(ctx context.Context, sess *Session, businessID int64, input gateway.CreateReviewInput) error {
	if sess == nil {
		return authMissing()
	}
	if input.Rating < 1 || input.Rating > 5 {
		return domainError(http.StatusBadRequest, "INVALID_RATING", "Rating must be between 1 and 5", nil)
	}
	if err := s.backend.CreateReview(ctx, sess.Token, businessID, input); err != nil {
		return err
	}
	s.refreshPagesAfterMutation(ctx, sess, 0)
	return nil
}

func (s *Service) UpdateReview(ctx context.Context, sess *Session, reviewID int64, input gateway.UpdateReviewInput) error {
	if sess == nil {
		return authMissing()
	}
	if err := s.backend.UpdateReview(ctx, sess.Token, reviewID, input); err != nil {
		return err
	}
	s.refreshPagesAfterMutation(ctx, sess, reviewID)
	return nil
}

func (s *Service) DeleteReview(ctx context.Context, sess *Session, reviewID int64) error {
	if sess == nil {
		return authMissing()
	}
	if err := s.backend.DeleteReview(ctx, sess.Token, reviewID); err != nil {
		return err
	}
	s.refreshPagesAfterMutation(ctx, sess, 0)
	return nil
}

func (s *Service) ReplyToReview(ctx context.Context, sess *Session, reviewID int64, text string) error {
	if sess == nil {
		return authMissing()
	}
	if !rbac.Can(sess.role(), rbac.ActionReplyFeedback) {
		return forbidden()
	}
	if text == "" {
		return domainError(http.StatusBadRequest, "INVALID_BODY", "Reply text is required", nil)
	}
	if err := s.backend.CreateReply(ctx, sess.Token, reviewID, text); err != nil {
		return err
	}
	s.refreshPagesAfterMutation(ctx, sess, 0)
	return nil
}

// --- directory proxies ---

func (s *Service) ListBusinesses(ctx context.Context, opts gateway.ListBusinessesOptions) ([]gateway.Business, error) {
	return s.backend.ListBusinesses(ctx, opts)
}

func (s *Service) GetBusiness(ctx context.Context, businessID int64) (gateway.Business, error) {
	return s.backend.GetBusiness(ctx, businessID)
}

func (s *Service) ListCategories(ctx context.Context) ([]gateway.Category, error) {
	return s.backend.ListCategories(ctx)
}

func (s *Service) requireManager(sess *Session) error {
	if sess == nil {
		return authMissing()
	}
	if !rbac.Can(sess.role(), rbac.ActionManageDirectory) {
		return forbidden()
	}
	return nil
}

func (s *Service) CreateBusiness(ctx context.Context, sess *Session, input gateway.BusinessInput) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.CreateBusiness(ctx, sess.Token, input)
}

func (s *Service) UpdateBusiness(ctx context.Context, sess *Session, businessID int64, input gateway.BusinessInput) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.UpdateBusiness(ctx, sess.Token, businessID, input)
}

func (s *Service) DeleteBusiness(ctx context.Context, sess *Session, businessID int64) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.DeleteBusiness(ctx, sess.Token, businessID)
}

func (s *Service) CreateCategory(ctx context.Context, sess *Session, input gateway.CategoryInput) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.CreateCategory(ctx, sess.Token, input)
}

func (s *Service) UpdateCategory(ctx context.Context, sess *Session, categoryID int64, input gateway.CategoryInput) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.UpdateCategory(ctx, sess.Token, categoryID, input)
}

func (s *Service) DeleteCategory(ctx context.Context, sess *Session, categoryID int64) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.DeleteCategory(ctx, sess.Token, categoryID)
}

func (s *Service) ListUsers(ctx context.Context, sess *Session) ([]gateway.User, error) {
	if err := s.requireManager(sess); err != nil {
		return nil, err
	}
	return s.backend.ListUsers(ctx, sess.Token)
}

func (s *Service) DeleteUser(ctx context.Context, sess *Session, userID int64) error {
	if err := s.requireManager(sess); err != nil {
		return err
	}
	return s.backend.DeleteUser(ctx, sess.Token, userID)
}

// AdminDeleteReview deletes any review; the admin table refreshes afterwards.
func (s *Service) AdminDeleteReview(ctx context.Context, sess *Session, reviewID int64) error {
	if sess == nil {
		return authMissing()
	}
	if !rbac.Can(sess.role(), rbac.ActionModerateReviews) {
		return forbidden()
	}
	if err := s.backend.DeleteReview(ctx, sess.Token, reviewID); err != nil {
		return err
	}
	s.refreshPagesAfterMutation(ctx, sess, 0)
	return nil
}
