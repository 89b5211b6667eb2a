package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type OrderLine struct {
	VariantID string  `json:"variant_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CreateOrderRequest carries the client's view of the cart. The backend
// reprices every line; Total is informational.
type CreateOrderRequest struct {
	CustomerID    string               `json:"customer_id,omitempty"`
	Items         []OrderLine          `json:"items"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Total         float64              `json:"total"`
}

type OrderPage struct {
	Orders     []domain.Order    `json:"orders"`
	Pagination domain.Pagination `json:"pagination"`
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Orders(ctx context.Context, skip, take int) (*OrderPage, error) {
	var page OrderPage
	if err := c.do(ctx, http.MethodGet, "/orders", pageQuery(skip, take), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Order(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/cancel", nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) OrderStatus(ctx context.Context, id string) (*domain.OrderStatusInfo, error) {
	var info domain.OrderStatusInfo
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id)+"/status", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
