package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/app"
	"github.com/fjod/go_cart/storefront/internal/display"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
)

var errUsage = errors.New("usage")

type env struct {
	app *app.App
	out io.Writer
	now func() time.Time
}

type command struct {
	name  string
	args  string
	about string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"login", "-phone P -password W", "sign in", cmdLogin},
		{"register", "-name N -phone P [-email E] -password W", "create an account and sign in", cmdRegister},
		{"logout", "", "sign out and forget the cart on this device", cmdLogout},
		{"whoami", "", "show the signed-in customer and shop", cmdWhoami},
		{"profile", "", "refresh the customer profile from the server", cmdProfile},
		{"shop", "-id ID -name NAME [-upi UPI]", "set the shop profile", cmdShop},
		{"categories", "", "list product categories", cmdCategories},
		{"products", "[-category ID] [-search Q] [-skip N] [-take N]", "list products", cmdProducts},
		{"search", "QUERY", "search products", cmdSearch},
		{"product", "PRODUCT_ID", "show a product and its variants", cmdProduct},
		{"add", "[-qty N] PRODUCT_ID VARIANT_ID", "add a variant to the cart", cmdAdd},
		{"cart", "", "show the cart", cmdCart},
		{"update", "VARIANT_ID QTY", "set a line's quantity (0 removes it)", cmdUpdate},
		{"remove", "VARIANT_ID", "remove a line from the cart", cmdRemove},
		{"clear", "[-local]", "empty the cart", cmdClear},
		{"sync", "", "replace the local cart with the server's", cmdSync},
		{"checkout", "[-method CASH|UPI|ONLINE] [-qr] [-qr-png FILE]", "place an order for the cart", cmdCheckout},
		{"orders", "[-skip N] [-take N]", "list your orders", cmdOrders},
		{"order", "ORDER_ID", "show an order", cmdOrder},
		{"status", "ORDER_ID", "show an order's status", cmdStatus},
		{"cancel", "ORDER_ID", "cancel an order that is still placed", cmdCancel},
		{"pay", "[-method UPI|ONLINE] ORDER_ID", "start a payment for an order", cmdPay},
		{"confirm", "ORDER_ID", "confirm a payment for an order", cmdConfirm},
	}
}

func printCommands(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s %s\t%s\n", c.name, c.args, c.about)
	}
	tw.Flush()
}

func run(ctx context.Context, a *app.App, out io.Writer, args []string) error {
	return runWith(ctx, &env{app: a, out: out, now: time.Now}, args)
}

func runWith(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, c := range commands {
		if c.name == args[0] {
			err := c.run(ctx, e, args[1:])
			if errors.Is(err, errUsage) {
				return fmt.Errorf("usage: storefront %s %s", c.name, c.args)
			}
			return err
		}
	}
	return fmt.Errorf("unknown command %q", args[0])
}

// errorText prefers the server's own message over the wrapped error chain.
func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return api.Message(err)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() != positional {
		return nil, errUsage
	}
	return fs.Args(), nil
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("login")
	phone := fs.String("phone", "", "")
	password := fs.String("password", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	id, err := e.app.Login(ctx, *phone, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Welcome, %s\n", id.Customer.Name)
	return nil
}

func cmdRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlags("register")
	var req api.RegisterRequest
	fs.StringVar(&req.Name, "name", "", "")
	fs.StringVar(&req.Phone, "phone", "", "")
	fs.StringVar(&req.Email, "email", "", "")
	fs.StringVar(&req.Password, "password", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	id, err := e.app.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Welcome, %s\n", id.Customer.Name)
	return nil
}

func cmdLogout(ctx context.Context, e *env, args []string) error {
	if err := e.app.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Logged out")
	return nil
}

func cmdWhoami(_ context.Context, e *env, _ []string) error {
	id := e.app.Session.Identity()
	if !id.IsAuthenticated() {
		fmt.Fprintln(e.out, "Not logged in")
		return nil
	}
	if id.Customer != nil {
		fmt.Fprintf(e.out, "%s (%s)\n", id.Customer.Name, id.Customer.Phone)
	}
	if id.Tenant != nil {
		fmt.Fprintf(e.out, "Shop: %s\n", id.Tenant.Name)
	}
	if exp, ok := e.app.Session.ExpiresAt(); ok {
		if exp.Before(e.now()) {
			fmt.Fprintln(e.out, "Session: expired")
		} else {
			fmt.Fprintf(e.out, "Session valid until %s\n", display.FormatDateTime(exp))
		}
	}
	return nil
}

func cmdProfile(ctx context.Context, e *env, _ []string) error {
	customer, err := e.app.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s (%s)", customer.Name, customer.Phone)
	if customer.Email != "" {
		fmt.Fprintf(e.out, " %s", customer.Email)
	}
	fmt.Fprintln(e.out)
	return nil
}

func cmdShop(ctx context.Context, e *env, args []string) error {
	fs := newFlags("shop")
	var tenant domain.Tenant
	id := fs.String("id", "", "")
	fs.StringVar(&tenant.Name, "name", "", "")
	fs.StringVar(&tenant.UPIID, "upi", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if *id == "" || tenant.Name == "" {
		return errUsage
	}
	tenant.ID = domain.ID(*id)

	if err := e.app.Session.SetTenant(ctx, tenant); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Shop set to %s\n", tenant.Name)
	return nil
}

func cmdCategories(ctx context.Context, e *env, _ []string) error {
	categories, err := e.app.API.Categories(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	for _, c := range categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
	}
	return tw.Flush()
}

func cmdProducts(ctx context.Context, e *env, args []string) error {
	fs := newFlags("products")
	var f api.ProductFilter
	fs.StringVar(&f.CategoryID, "category", "", "")
	fs.StringVar(&f.Search, "search", "", "")
	fs.IntVar(&f.Skip, "skip", 0, "")
	fs.IntVar(&f.Take, "take", 20, "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	page, err := e.app.API.Products(ctx, f)
	if err != nil {
		return err
	}
	return printProducts(e.out, page)
}

func cmdSearch(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	page, err := e.app.API.Search(ctx, strings.Join(args, " "), 0, 20)
	if err != nil {
		return err
	}
	return printProducts(e.out, page)
}

func printProducts(out io.Writer, page *api.ProductPage) error {
	if len(page.Products) == 0 {
		fmt.Fprintln(out, "No products found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, p := range page.Products {
		from := ""
		if len(p.Variants) > 0 {
			from = display.FormatPrice(p.Variants[0].SellingPrice.Float64())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d variants\t%s\n", p.ID, p.Name, p.Brand, len(p.Variants), from)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.Pagination.Total > len(page.Products) {
		fmt.Fprintf(out, "Showing %d of %d\n", len(page.Products), page.Pagination.Total)
	}
	return nil
}

func cmdProduct(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := e.app.API.Product(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s", p.Name)
	if p.Brand != "" {
		fmt.Fprintf(e.out, " by %s", p.Brand)
	}
	fmt.Fprintf(e.out, " [%s]\n", p.Category.Name)

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	for _, v := range p.Variants {
		stock := fmt.Sprintf("%d in stock", v.StockQuantity)
		if !v.Available() {
			stock = "out of stock"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", v.ID, v.Unit(), display.FormatPrice(v.SellingPrice.Float64()), stock)
	}
	return tw.Flush()
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := newFlags("add")
	qty := fs.Int("qty", 1, "")
	rest, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	p, err := e.app.API.Product(ctx, rest[0])
	if err != nil {
		return err
	}
	v, ok := p.Variant(rest[1])
	if !ok {
		return fmt.Errorf("product %s has no variant %s", rest[0], rest[1])
	}

	line, err := e.app.Cart.AddItem(ctx, p.LineItem(v), *qty)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s %s x%d in cart\n", line.ProductName, line.Unit, line.Quantity)
	if line.Quantity == line.MaxQuantity && line.Quantity < *qty {
		fmt.Fprintf(e.out, "Only %d available\n", line.MaxQuantity)
	}
	return nil
}

func cmdCart(_ context.Context, e *env, _ []string) error {
	lines := e.app.Cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(e.out, "Cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s %s\t%d x %s\t%s\n",
			l.VariantID, l.ProductName, l.Unit, l.Quantity,
			display.FormatPrice(l.UnitPrice), display.FormatPrice(l.Subtotal()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%d items, total %s\n", e.app.Cart.ItemCount(), display.FormatPrice(e.app.Cart.Total()))
	return nil
}

func cmdUpdate(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return errUsage
	}

	line, ok := e.app.Cart.UpdateQuantity(ctx, args[0], qty)
	switch {
	case ok:
		fmt.Fprintf(e.out, "%s %s x%d in cart\n", line.ProductName, line.Unit, line.Quantity)
	case qty <= 0:
		fmt.Fprintf(e.out, "Removed %s\n", args[0])
	default:
		fmt.Fprintf(e.out, "%s is not in the cart\n", args[0])
	}
	return nil
}

func cmdRemove(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	e.app.Cart.RemoveItem(ctx, args[0])
	fmt.Fprintf(e.out, "Removed %s\n", args[0])
	return nil
}

func cmdClear(ctx context.Context, e *env, args []string) error {
	fs := newFlags("clear")
	local := fs.Bool("local", false, "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if err := e.app.Cart.ClearCart(ctx, *local); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Cart cleared")
	return nil
}

func cmdSync(ctx context.Context, e *env, _ []string) error {
	if !e.app.Session.IsAuthenticated() {
		return orders.ErrNotAuthenticated
	}
	if err := e.app.Cart.LoadCart(ctx); err != nil {
		return fmt.Errorf("cart kept as is: %w", err)
	}
	fmt.Fprintf(e.out, "Cart synced: %d items\n", e.app.Cart.ItemCount())
	return nil
}

func cmdCheckout(ctx context.Context, e *env, args []string) error {
	fs := newFlags("checkout")
	methodFlag := fs.String("method", string(domain.PaymentCash), "")
	showQR := fs.Bool("qr", false, "")
	pngPath := fs.String("qr-png", "", "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	method, ok := domain.ParsePaymentMethod(*methodFlag)
	if !ok {
		return fmt.Errorf("%w: %q", orders.ErrInvalidPaymentMethod, *methodFlag)
	}

	receipt, err := e.app.Orders.PlaceOrder(ctx, method)
	if err != nil {
		return err
	}
	o := receipt.Order
	fmt.Fprintf(e.out, "Order %s placed: %s, %s\n", o.DisplayNumber(), display.FormatPrice(o.TotalAmount.Float64()), o.Status.Label())

	if receipt.PaymentURI == "" {
		return nil
	}
	fmt.Fprintf(e.out, "Pay with UPI: %s\n", receipt.PaymentURI)
	if *showQR {
		qr, err := display.QRCode(receipt.PaymentURI)
		if err != nil {
			return err
		}
		fmt.Fprint(e.out, qr)
	}
	if *pngPath != "" {
		png, err := display.QRCodePNG(receipt.PaymentURI, 300)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*pngPath, png, 0o644); err != nil {
			return fmt.Errorf("write qr code failed: %w", err)
		}
		fmt.Fprintf(e.out, "QR code written to %s\n", *pngPath)
	}
	return nil
}

func cmdOrders(ctx context.Context, e *env, args []string) error {
	fs := newFlags("orders")
	skip := fs.Int("skip", 0, "")
	take := fs.Int("take", 20, "")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	page, err := e.app.Orders.List(ctx, *skip, *take)
	if err != nil {
		return err
	}
	if len(page.Orders) == 0 {
		fmt.Fprintln(e.out, "No orders yet")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	for _, o := range page.Orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.DisplayNumber(), o.Status.Label(),
			display.FormatPrice(o.TotalAmount.Float64()), display.RelativeTime(o.CreatedAt, e.now()))
	}
	return tw.Flush()
}

func cmdOrder(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	o, err := e.app.Orders.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Order %s  %s\n", o.DisplayNumber(), o.Status.Label())
	fmt.Fprintf(e.out, "Placed %s", display.FormatDateTime(o.CreatedAt))
	if o.PaymentMethod != "" {
		fmt.Fprintf(e.out, ", paid by %s", o.PaymentMethod)
	}
	if o.InvoiceStatus != "" {
		fmt.Fprintf(e.out, " (invoice %s)", strings.ToLower(o.InvoiceStatus))
	}
	fmt.Fprintln(e.out)

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	for _, item := range o.Items {
		fmt.Fprintf(tw, "  %s %s\t%d x %s\t%s\n",
			item.ProductName, item.VariantName, item.Quantity,
			display.FormatPrice(item.UnitPrice.Float64()), display.FormatPrice(item.TotalPrice.Float64()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Total %s\n", display.FormatPrice(o.TotalAmount.Float64()))
	if o.Status.Cancellable() {
		fmt.Fprintf(e.out, "Can still be cancelled: storefront cancel %s\n", o.ID)
	}
	return nil
}

func cmdStatus(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	info, err := e.app.Orders.Status(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: %s, updated %s\n", info.OrderID, info.Status.Label(), display.RelativeTime(info.UpdatedAt, e.now()))
	return nil
}

func cmdCancel(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	o, err := e.app.Orders.Cancel(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Order %s %s\n", o.DisplayNumber(), strings.ToLower(o.Status.Label()))
	return nil
}

func cmdPay(ctx context.Context, e *env, args []string) error {
	fs := newFlags("pay")
	methodFlag := fs.String("method", string(domain.PaymentUPI), "")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	method, ok := domain.ParsePaymentMethod(*methodFlag)
	if !ok {
		return fmt.Errorf("%w: %q", orders.ErrInvalidPaymentMethod, *methodFlag)
	}

	p, err := e.app.Orders.InitiatePayment(ctx, rest[0], method)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Payment %s for %s: %s\n", p.Reference, display.FormatPrice(p.Amount.Float64()), p.Status)

	if tenant := e.app.Session.Tenant(); tenant != nil && method.UsesUPI() {
		if uri, err := orders.UPIPaymentURI(*tenant, p.Amount.Float64()); err == nil {
			fmt.Fprintf(e.out, "Pay with UPI: %s\n", uri)
		}
	}
	return nil
}

func cmdConfirm(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := e.app.Orders.ConfirmPayment(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Payment for order %s: %s\n", p.OrderID, p.Status)
	return nil
}
