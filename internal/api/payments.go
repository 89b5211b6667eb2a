package api

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Payment struct {
	OrderID   domain.ID            `json:"order_id"`
	Method    domain.PaymentMethod `json:"method"`
	Status    string               `json:"status"`
	Amount    domain.Amount        `json:"amount"`
	Reference string               `json:"reference,omitempty"`
}

func (c *Client) InitiatePayment(ctx context.Context, orderID string, method domain.PaymentMethod) (*Payment, error) {
	body := struct {
		OrderID string               `json:"order_id"`
		Method  domain.PaymentMethod `json:"method"`
	}{orderID, method}

	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments/initiate", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, orderID string) (*Payment, error) {
	body := struct {
		OrderID string `json:"order_id"`
	}{orderID}

	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments/confirm", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
