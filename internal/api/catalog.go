package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ProductFilter struct {
	CategoryID string
	Search     string
	Skip       int
	Take       int
}

type ProductPage struct {
	Products   []domain.Product  `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.do(ctx, http.MethodGet, "/catalog/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) Products(ctx context.Context, f ProductFilter) (*ProductPage, error) {
	q := pageQuery(f.Skip, f.Take)
	if f.CategoryID != "" {
		q.Set("category_id", f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}

	var page ProductPage
	if err := c.do(ctx, http.MethodGet, "/catalog/products", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Search(ctx context.Context, query string, skip, take int) (*ProductPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("search query is required")
	}
	q := pageQuery(skip, take)
	q.Set("q", query)

	var page ProductPage
	if err := c.do(ctx, http.MethodGet, "/catalog/search", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Product(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationError("product id is required")
	}
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, "/catalog/products/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
