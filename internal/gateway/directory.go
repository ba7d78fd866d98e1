package gateway

import (
	"context"
	"strconv"
)

// ListBusinessesOptions narrows the business listing; zero values mean no
// filter.
type ListBusinessesOptions struct {
	Search     string
	CategoryID int64
}

func (c *Client) ListBusinesses(ctx context.Context, opts ListBusinessesOptions) ([]Business, error) {
	req := c.request().SetContext(ctx)
	if opts.Search != "" {
		req.SetQueryParam("search", opts.Search)
	}
	if opts.CategoryID != 0 {
		req.SetQueryParam("category_id", strconv.FormatInt(opts.CategoryID, 10))
	}
	var out []Business
	resp, err := req.SetResult(&out).Get("/businesses")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBusiness(ctx context.Context, businessID int64) (Business, error) {
	var out Business
	resp, err := c.request().
		SetContext(ctx).
		SetResult(&out).
		Get("/businesses/" + strconv.FormatInt(businessID, 10))
	if err := checkResponse(resp, err); err != nil {
		return Business{}, err
	}
	return out, nil
}

type BusinessInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id,omitempty"`
}

func (c *Client) CreateBusiness(ctx context.Context, token string, input BusinessInput) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(input).
		Post("/businesses")
	return checkResponse(resp, err)
}

func (c *Client) UpdateBusiness(ctx context.Context, token string, businessID int64, input BusinessInput) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(input).
		Patch("/businesses/" + strconv.FormatInt(businessID, 10))
	return checkResponse(resp, err)
}

func (c *Client) DeleteBusiness(ctx context.Context, token string, businessID int64) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		Delete("/businesses/" + strconv.FormatInt(businessID, 10))
	return checkResponse(resp, err)
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	resp, err := c.request().
		SetContext(ctx).
		SetResult(&out).
		Get("/categories")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) CreateCategory(ctx context.Context, token string, input CategoryInput) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(input).
		Post("/categories")
	return checkResponse(resp, err)
}

func (c *Client) UpdateCategory(ctx context.Context, token string, categoryID int64, input CategoryInput) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetBody(input).
		Patch("/categories/" + strconv.FormatInt(categoryID, 10))
	return checkResponse(resp, err)
}

func (c *Client) DeleteCategory(ctx context.Context, token string, categoryID int64) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		Delete("/categories/" + strconv.FormatInt(categoryID, 10))
	return checkResponse(resp, err)
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	var out []User
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetResult(&out).
		Get("/users")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, token string, userID int64) error {
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		Delete("/users/" + strconv.FormatInt(userID, 10))
	return checkResponse(resp, err)
}
