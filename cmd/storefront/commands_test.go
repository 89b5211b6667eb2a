package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/api/apitest"
	"github.com/fjod/go_cart/storefront/internal/app"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "9876543210"

type cli struct {
	srv *apitest.Server
	app *app.App
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	srv := apitest.NewServer(t)
	srv.AddAccount(phone, "secret", domain.Customer{ID: "c1", Name: "Asha", Phone: phone},
		&domain.Tenant{ID: "1", Name: "Sharma Kirana", UPIID: "sharma@upi"})

	cfg := &config.Config{
		APIBaseURL:         srv.URL,
		TenantID:           "1",
		StoreDriver:        config.DriverMemory,
		RequestTimeout:     5 * time.Second,
		DefaultMaxQuantity: 999,
		BreakerFailures:    5,
		BreakerCooldown:    time.Second,
	}
	a := app.Assemble(context.Background(), cfg, kvstore.NewMemoryStore(), notify.NewRecorder(nil))
	t.Cleanup(a.Tasks.Close)
	return &cli{srv: srv, app: a}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), c.app, &out, args)
	c.app.Tasks.Wait()
	return out.String(), err
}

func (c *cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, args...)
	require.NoError(t, err)
	return out
}

func (c *cli) login(t *testing.T) {
	t.Helper()
	c.mustRun(t, "login", "-phone", phone, "-password", "secret")
}

func TestRun_UnknownCommand(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "frobnicate")
	assert.EqualError(t, err, `unknown command "frobnicate"`)
}

func TestRun_BadArgumentsPrintUsage(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "update", "v1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: storefront update VARIANT_ID QTY")

	_, err = c.run(t, "update", "v1", "lots")
	assert.Error(t, err)
}

func TestPrintCommands(t *testing.T) {
	var out bytes.Buffer
	printCommands(&out)
	assert.Contains(t, out.String(), "checkout")
	assert.Contains(t, out.String(), "place an order for the cart")
}

func TestLoginAndWhoami(t *testing.T) {
	c := newCLI(t)
	assert.Equal(t, "Not logged in\n", c.mustRun(t, "whoami"))

	assert.Equal(t, "Welcome, Asha\n", c.mustRun(t, "login", "-phone", phone, "-password", "secret"))

	out := c.mustRun(t, "whoami")
	assert.Contains(t, out, "Asha (9876543210)")
	assert.Contains(t, out, "Shop: Sharma Kirana")
	assert.Contains(t, out, "Session valid until")

	assert.Equal(t, "Logged out\n", c.mustRun(t, "logout"))
	assert.False(t, c.app.Session.IsAuthenticated())
}

func TestLogin_WrongPassword(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "login", "-phone", phone, "-password", "nope")
	require.Error(t, err)
	assert.Equal(t, "invalid credentials", errorText(err))
}

func TestCatalogCommands(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "categories")
	assert.Contains(t, out, "Staples")
	assert.Contains(t, out, "Dairy")

	out = c.mustRun(t, "products", "-category", "cat-1")
	assert.Contains(t, out, "Basmati Rice")
	assert.Contains(t, out, "Toor Dal")
	assert.NotContains(t, out, "Toned Milk")

	out = c.mustRun(t, "search", "rice")
	assert.Contains(t, out, "Basmati Rice")

	out = c.mustRun(t, "product", "p3")
	assert.Contains(t, out, "Toned Milk")
	assert.Contains(t, out, "out of stock")

	_, err := c.run(t, "product", "nope")
	require.Error(t, err)
	assert.Equal(t, "product not found", errorText(err))
}

func TestCartCommands(t *testing.T) {
	c := newCLI(t)
	c.login(t)

	assert.Equal(t, "Cart is empty\n", c.mustRun(t, "cart"))

	out := c.mustRun(t, "add", "-qty", "2", "p1", "v1")
	assert.Equal(t, "Basmati Rice 1 kg x2 in cart\n", out)
	c.mustRun(t, "add", "p2", "v3")

	out = c.mustRun(t, "cart")
	assert.Contains(t, out, "3 items, total ₹335.50")

	out = c.mustRun(t, "update", "v1", "9")
	assert.Equal(t, "Basmati Rice 1 kg x5 in cart\n", out)

	assert.Equal(t, "Removed v3\n", c.mustRun(t, "update", "v3", "0"))
	assert.Equal(t, "v9 is not in the cart\n", c.mustRun(t, "update", "v9", "2"))

	server := c.srv.Cart(phone)
	require.Len(t, server, 1)
	assert.Equal(t, 5, server[0].Quantity)

	assert.Equal(t, "Cart cleared\n", c.mustRun(t, "clear"))
	assert.Zero(t, c.app.Cart.Len())
	assert.Empty(t, c.srv.Cart(phone))
}

func TestAdd_OutOfStock(t *testing.T) {
	c := newCLI(t)
	c.login(t)

	_, err := c.run(t, "add", "p3", "v4")
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	_, err = c.run(t, "add", "p1", "v9")
	assert.EqualError(t, err, "product p1 has no variant v9")
}

func TestSync(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "sync")
	assert.ErrorIs(t, err, orders.ErrNotAuthenticated)

	c.login(t)
	price := domain.Amount(95.5)
	c.srv.SetCart(phone, []api.CartLine{{VariantID: "v3", ProductID: "p2", ProductName: "Toor Dal", Price: &price, Quantity: 4}})

	assert.Equal(t, "Cart synced: 4 items\n", c.mustRun(t, "sync"))
}

func TestCheckoutAndOrders(t *testing.T) {
	c := newCLI(t)
	c.login(t)
	c.mustRun(t, "add", "-qty", "2", "p1", "v1")

	png := filepath.Join(t.TempDir(), "pay.png")
	out := c.mustRun(t, "checkout", "-method", "upi", "-qr-png", png)
	assert.Contains(t, out, "Order KS-0001 placed: ₹240.00, Placed")
	assert.Contains(t, out, "Pay with UPI: upi://pay?pa=sharma@upi&pn=Sharma%20Kirana&am=240.00&cu=INR")

	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
	assert.Zero(t, c.app.Cart.Len())

	out = c.mustRun(t, "orders")
	assert.Contains(t, out, "KS-0001")
	assert.Contains(t, out, "Just now")

	out = c.mustRun(t, "order", "o1")
	assert.Contains(t, out, "Basmati Rice")
	assert.Contains(t, out, "Can still be cancelled")

	assert.Contains(t, c.mustRun(t, "status", "o1"), "o1: Placed")
	assert.Equal(t, "Order KS-0001 cancelled\n", c.mustRun(t, "cancel", "o1"))

	_, err = c.run(t, "cancel", "o1")
	assert.ErrorIs(t, err, orders.ErrNotCancellable)
}

func TestCheckout_Validation(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "checkout")
	assert.ErrorIs(t, err, orders.ErrNotAuthenticated)

	c.login(t)
	_, err = c.run(t, "checkout", "-method", "CHEQUE")
	assert.ErrorIs(t, err, orders.ErrInvalidPaymentMethod)

	_, err = c.run(t, "checkout")
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
}

func TestPayAndConfirm(t *testing.T) {
	c := newCLI(t)
	c.login(t)
	c.mustRun(t, "add", "p2", "v3")
	c.mustRun(t, "checkout")

	out := c.mustRun(t, "pay", "o1")
	assert.Contains(t, out, "Payment pay-o1 for ₹95.50: PENDING")
	assert.Contains(t, out, "am=95.50")

	assert.Equal(t, "Payment for order o1: PAID\n", c.mustRun(t, "confirm", "o1"))
}

func TestShop(t *testing.T) {
	c := newCLI(t)
	c.login(t)

	_, err := c.run(t, "shop", "-name", "Gupta Stores")
	require.Error(t, err)

	assert.Equal(t, "Shop set to Gupta Stores\n", c.mustRun(t, "shop", "-id", "2", "-name", "Gupta Stores", "-upi", "gupta@upi"))
	assert.Equal(t, "gupta@upi", c.app.Session.Tenant().UPIID)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "cart is empty", errorText(&api.Error{Status: 400, Message: "cart is empty"}))
	assert.Equal(t, assert.AnError.Error(), errorText(assert.AnError))
}
