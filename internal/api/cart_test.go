package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/api/apitest"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveJSON(t *testing.T, body string) *api.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return api.NewClient(ts.URL, "1", time.Second)
}

func TestGetCart_BareList(t *testing.T) {
	client := serveJSON(t, `{"success":true,"data":[
		{"id":11,"variant_id":3,"product_id":"p2","product_name":"Toor Dal","selling_price_snapshot":"95.50","quantity":2,"stock_quantity":40}
	]}`)

	lines, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	line := lines[0]
	assert.Equal(t, "11", line.ID.String())
	assert.Equal(t, "3", line.VariantID.String())
	require.NotNil(t, line.SellingPriceSnapshot)
	assert.InDelta(t, 95.5, line.SellingPriceSnapshot.Float64(), 1e-9)
	assert.Nil(t, line.Price)
	require.NotNil(t, line.StockQuantity)
	assert.Equal(t, 40, *line.StockQuantity)
}

func TestGetCart_ItemsObject(t *testing.T) {
	client := serveJSON(t, `{"success":true,"data":{"id":"cart-1","items":[
		{"variant_id":"v1","price":120,"quantity":1},
		{"variant_id":"v2","quantity":3}
	]}}`)

	lines, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NotNil(t, lines[0].Price)
	assert.InDelta(t, 120, lines[0].Price.Float64(), 1e-9)
	assert.Nil(t, lines[1].SellingPriceSnapshot)
	assert.Nil(t, lines[1].StockQuantity)
}

func TestGetCart_NullData(t *testing.T) {
	client := serveJSON(t, `{"success":true,"data":null}`)

	lines, err := client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestGetCart_MalformedPrice(t *testing.T) {
	client := serveJSON(t, `{"success":true,"data":[{"variant_id":"v1","price":"abc","quantity":1}]}`)

	_, err := client.GetCart(context.Background())
	assert.Error(t, err)
}

func TestCartMutations(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddAccount("9876543210", "secret", domain.Customer{ID: "c1"}, nil)
	client := newClient(t, srv)
	client.SetTokenSource(staticToken(srv.IssueToken("9876543210")))
	ctx := context.Background()

	require.NoError(t, client.AddToCart(ctx, "v1", 2))
	require.NoError(t, client.AddToCart(ctx, "v3", 1))
	require.NoError(t, client.UpdateCartItem(ctx, "v3", 4))

	lines, err := client.GetCart(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 4, lines[1].Quantity)
	assert.Equal(t, "Basmati Rice", lines[0].ProductName)

	require.NoError(t, client.RemoveCartItem(ctx, "v1"))
	lines, err = client.GetCart(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "v3", lines[0].VariantID.String())

	require.NoError(t, client.ClearCart(ctx))
	lines, err = client.GetCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)

	assert.Equal(t, 2, srv.Calls("POST /cart/add"))
	assert.Equal(t, 1, srv.Calls("DELETE /cart/clear"))
}

func TestAddToCart_OutOfStockRejected(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddAccount("9876543210", "secret", domain.Customer{ID: "c1"}, nil)
	client := newClient(t, srv)
	client.SetTokenSource(staticToken(srv.IssueToken("9876543210")))

	err := client.AddToCart(context.Background(), "v4", 1)
	require.Error(t, err)
	assert.False(t, api.IsUnavailable(err))
	assert.Equal(t, "variant is out of stock", api.Message(err))
}

func TestCatalog(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv)
	ctx := context.Background()

	categories, err := client.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	page, err := client.Products(ctx, api.ProductFilter{CategoryID: "cat-1"})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)
	assert.Equal(t, 2, page.Pagination.Total)

	page, err = client.Search(ctx, "milk", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Toned Milk", page.Products[0].Name)

	p, err := client.Product(ctx, "p2")
	require.NoError(t, err)
	v, ok := p.Variant("v3")
	require.True(t, ok)
	assert.Equal(t, "Pouch", v.Unit())
	assert.InDelta(t, 95.5, v.SellingPrice.Float64(), 1e-9)

	_, err = client.Product(ctx, "missing")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
