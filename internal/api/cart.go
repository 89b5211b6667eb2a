package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CartLine is one line of the server-side cart. Price and stock are
// optional on the wire; nil means the server did not send them.
type CartLine struct {
	ID                   domain.ID      `json:"id"`
	VariantID            domain.ID      `json:"variant_id"`
	ProductID            domain.ID      `json:"product_id"`
	ProductName          string         `json:"product_name"`
	VariantName          string         `json:"variant_name"`
	Brand                string         `json:"brand"`
	Size                 string         `json:"size"`
	Packaging            string         `json:"packaging"`
	SellingPriceSnapshot *domain.Amount `json:"selling_price_snapshot"`
	Price                *domain.Amount `json:"price"`
	Quantity             int            `json:"quantity"`
	VariantImageURL      string         `json:"variant_image_url"`
	ProductImageURL      string         `json:"product_image_url"`
	StockQuantity        *int           `json:"stock_quantity"`
}

type cartMutation struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// GetCart returns the authoritative cart lines. The backend answers either
// with a bare list or with a cart object holding "items".
func (c *Client) GetCart(ctx context.Context) ([]CartLine, error) {
	var data json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/cart", nil, nil, &data); err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var lines []CartLine
	if data[0] == '[' {
		if err := json.Unmarshal(data, &lines); err != nil {
			return nil, fmt.Errorf("decode cart failed: %w", err)
		}
		return lines, nil
	}

	var cart struct {
		Items []CartLine `json:"items"`
	}
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart failed: %w", err)
	}
	return cart.Items, nil
}

func (c *Client) AddToCart(ctx context.Context, variantID string, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart/add", nil, cartMutation{VariantID: variantID, Quantity: quantity}, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, variantID string, quantity int) error {
	return c.do(ctx, http.MethodPut, "/cart/update", nil, cartMutation{VariantID: variantID, Quantity: quantity}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, variantID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(variantID), nil, nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart/clear", nil, nil, nil)
}
