package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id,omitempty"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id,omitempty"`
}

// AuthResult is returned by both login and registration.
type AuthResult struct {
	Token    string          `json:"token"`
	Customer domain.Customer `json:"customer"`
	Tenant   *domain.Tenant  `json:"tenant,omitempty"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		return nil, validationError("phone is required")
	}
	if req.Password == "" {
		return nil, validationError("password is required")
	}
	if req.TenantID == "" {
		req.TenantID = c.tenantID
	}

	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/customer-auth/login", nil, req, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "login response carried no token"}
	}
	return &res, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "":
		return nil, validationError("name is required")
	case req.Phone == "":
		return nil, validationError("phone is required")
	case req.Password == "":
		return nil, validationError("password is required")
	}
	if req.TenantID == "" {
		req.TenantID = c.tenantID
	}

	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/customer-auth/register", nil, req, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "register response carried no token"}
	}
	return &res, nil
}

// Profile fetches the signed-in customer's current profile.
func (c *Client) Profile(ctx context.Context) (*domain.Customer, error) {
	var customer domain.Customer
	if err := c.do(ctx, http.MethodGet, "/customer-auth/me", nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}
