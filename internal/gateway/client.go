// Package gateway holds the HTTP clients for the review platform backend.
// Every piece of persistent state lives behind these calls; this tier never
// talks to a database of its own.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is a non-2xx response from the backend, carrying the FastAPI
// detail message when one was present.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Detail)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// IsStatus reports whether err is a backend response with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: client}
}

// HTTPClient exposes the underlying transport so tests can intercept it.
func (c *Client) HTTPClient() *http.Client {
	return c.http.GetClient()
}

type errorBody struct {
	Detail string `json:"detail"`
}

// checkResponse converts a transport error or non-2xx response into an error
// the callers can inspect.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	if resp.IsError() {
		statusErr := &StatusError{Code: resp.StatusCode()}
		if body, ok := resp.Error().(*errorBody); ok && body != nil {
			statusErr.Detail = body.Detail
		}
		return statusErr
	}
	return nil
}

func (c *Client) request() *resty.Request {
	return c.http.R().SetError(&errorBody{})
}

func bearer(token string) string {
	return "Bearer " + token
}
