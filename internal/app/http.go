package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"avisio/api/internal/gateway"
	"avisio/api/internal/reviews"
)

type HTTPServer struct {
	service      *Service
	corsOrigin   string
	cookieName   string
	cookieSecure bool
}

func NewHTTPServer(service *Service, corsOrigin, cookieName string, cookieSecure bool) *HTTPServer {
	return &HTTPServer{
		service:      service,
		corsOrigin:   corsOrigin,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

// sessionFromRequest resolves the session cookie, falling back to a bearer
// header for non-browser clients. Returns nil for anonymous requests.
func (s *HTTPServer) sessionFromRequest(r *http.Request) *Session {
	id := ""
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		id = cookie.Value
	}
	if id == "" {
		id = bearerToken(r)
	}
	if id == "" {
		return nil
	}
	return s.service.SessionFromID(r.Context(), id)
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func wantsRefresh(r *http.Request) bool {
	return r.URL.Query().Get("refresh") == "true"
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"sessions": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["sessions"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		sess := s.sessionFromRequest(r)
		s.service.Logout(r.Context(), sess)
		s.setSessionCookie(w, "", -1)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		sess := s.sessionFromRequest(r)
		if sess == nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		profile, err := s.service.Me(r.Context(), sess)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"user":          profile,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/token" {
		sess := s.sessionFromRequest(r)
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "AUTH_MISSING", "Not logged in", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": sess.Token, "token_type": "bearer"})
		return
	}

	// Public directory proxies
	if r.Method == http.MethodGet && r.URL.Path == "/api/businesses" {
		opts := gateway.ListBusinessesOptions{
			Search: strings.TrimSpace(r.URL.Query().Get("search")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "category_id must be an integer", nil)
				return
			}
			opts.CategoryID = parsed
		}
		items, err := s.service.ListBusinesses(r.Context(), opts)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"businesses": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/categories" {
		items, err := s.service.ListCategories(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": items})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/supervisor/feedback" {
		sess := s.sessionFromRequest(r)
		filter := FeedbackFilter{
			Label: strings.TrimSpace(r.URL.Query().Get("label")),
			Date:  strings.TrimSpace(r.URL.Query().Get("date")),
		}
		snap, err := s.service.SupervisorFeedback(r.Context(), sess, filter, wantsRefresh(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/reviews" {
		sess := s.sessionFromRequest(r)
		snap, err := s.service.AdminReviews(r.Context(), sess, wantsRefresh(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if r.URL.Path == "/api/admin/businesses" || r.URL.Path == "/api/admin/categories" || r.URL.Path == "/api/admin/users" {
		s.handleAdminCollection(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "businesses" {
		businessID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "business id must be an integer", nil)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		business, err := s.service.GetBusiness(r.Context(), businessID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"business": business})
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "businesses" && parts[3] == "reviews" {
		businessID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "business id must be an integer", nil)
			return
		}
		s.handleBusinessReviews(w, r, businessID)
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "reviews" && parts[3] == "vote" {
		reviewID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review id must be an integer", nil)
			return
		}
		s.handleVote(w, r, reviewID)
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "reviews" {
		reviewID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review id must be an integer", nil)
			return
		}
		s.handleReview(w, r, reviewID)
		return
	}

	if len(parts) == 5 && parts[0] == "api" && parts[1] == "supervisor" && parts[2] == "reviews" && parts[4] == "reply" {
		reviewID, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review id must be an integer", nil)
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		sess := s.sessionFromRequest(r)
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ReplyToReview(r.Context(), sess, reviewID, strings.TrimSpace(body.Text)); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "admin" && parts[2] == "reviews" {
		reviewID, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review id must be an integer", nil)
			return
		}
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		sess := s.sessionFromRequest(r)
		if err := s.service.AdminDeleteReview(r.Context(), sess, reviewID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "admin" {
		s.handleAdminItem(w, r, parts[2], parts[3])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Username) == "" || body.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "username and password are required", nil)
		return
	}

	sess, err := s.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	s.setSessionCookie(w, sess.ID, int(s.service.cfg.SessionTTL.Seconds()))
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"user_id":  sess.UserID,
			"username": sess.Username,
			"email":    sess.Email,
			"role":     sess.Role,
		},
	})
}

func (s *HTTPServer) handleBusinessReviews(w http.ResponseWriter, r *http.Request, businessID int64) {
	sess := s.sessionFromRequest(r)

	if r.Method == http.MethodGet {
		snap, err := s.service.BusinessReviews(r.Context(), sess, businessID, wantsRefresh(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if r.Method == http.MethodPost {
		var body gateway.CreateReviewInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SubmitReview(r.Context(), sess, businessID, body); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleVote(w http.ResponseWriter, r *http.Request, reviewID int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	sess := s.sessionFromRequest(r)

	var body struct {
		BusinessID int64  `json:"business_id"`
		Direction  string `json:"direction"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	direction, err := reviews.ParseDirection(body.Direction)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if body.BusinessID == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "business_id is required", nil)
		return
	}

	snap, err := s.service.Vote(r.Context(), sess, body.BusinessID, reviewID, direction)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleReview(w http.ResponseWriter, r *http.Request, reviewID int64) {
	sess := s.sessionFromRequest(r)

	if r.Method == http.MethodPatch {
		var body gateway.UpdateReviewInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateReview(r.Context(), sess, reviewID, body); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.service.DeleteReview(r.Context(), sess, reviewID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleAdminCollection(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFromRequest(r)
	kind := strings.TrimPrefix(r.URL.Path, "/api/admin/")

	if r.Method == http.MethodGet {
		switch kind {
		case "businesses":
			items, err := s.service.ListBusinesses(r.Context(), gateway.ListBusinessesOptions{})
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"businesses": items})
		case "categories":
			items, err := s.service.ListCategories(r.Context())
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"categories": items})
		case "users":
			items, err := s.service.ListUsers(r.Context(), sess)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"users": items})
		}
		return
	}

	if r.Method == http.MethodPost {
		switch kind {
		case "businesses":
			var body gateway.BusinessInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.CreateBusiness(r.Context(), sess, body); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
		case "categories":
			var body gateway.CategoryInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.CreateCategory(r.Context(), sess, body); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleAdminItem(w http.ResponseWriter, r *http.Request, kind, rawID string) {
	sess := s.sessionFromRequest(r)
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id must be an integer", nil)
		return
	}

	if r.Method == http.MethodPatch || r.Method == http.MethodPut {
		switch kind {
		case "businesses":
			var body gateway.BusinessInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateBusiness(r.Context(), sess, id, body); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case "categories":
			var body gateway.CategoryInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.UpdateCategory(r.Context(), sess, id, body); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	if r.Method == http.MethodDelete {
		var deleteErr error
		switch kind {
		case "businesses":
			deleteErr = s.service.DeleteBusiness(r.Context(), sess, id)
		case "categories":
			deleteErr = s.service.DeleteCategory(r.Context(), sess, id)
		case "users":
			deleteErr = s.service.DeleteUser(r.Context(), sess, id)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if deleteErr != nil {
			status, code, message, details := mapError(deleteErr)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body; the target keeps its zero value and field-level
			// validation decides.
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
