// Package apitest provides an in-process fake of the storefront REST backend
// for tests.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type account struct {
	password string
	customer domain.Customer
	tenant   *domain.Tenant
}

type Server struct {
	URL string

	mu        sync.Mutex
	accounts  map[string]*account // phone -> account
	tokens    map[string]string   // token -> phone
	carts     map[string][]api.CartLine
	products  []domain.Product
	orders    map[string][]*domain.Order // phone -> orders
	failures  map[string]int             // path prefix -> status
	calls     map[string]int
	headers   http.Header
	orderSeq  int
	customers int
}

// NewServer starts a fake backend seeded with Catalog and stops it when the
// test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		carts:    make(map[string][]api.CartLine),
		products: Catalog(),
		orders:   make(map[string][]*domain.Order),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

// Catalog is the product set every fake server starts with.
func Catalog() []domain.Product {
	staples := domain.Category{ID: "cat-1", Name: "Staples"}
	dairy := domain.Category{ID: "cat-2", Name: "Dairy"}
	return []domain.Product{
		{
			ID: "p1", Name: "Basmati Rice", Brand: "India Gate", Category: staples,
			Variants: []domain.Variant{
				{ID: "v1", SKU: "RICE-1KG", Size: "1 kg", SellingPrice: 120, StockQuantity: 5, IsActive: true},
				{ID: "v2", SKU: "RICE-5KG", Size: "5 kg", SellingPrice: 560, StockQuantity: 2, IsActive: true},
			},
		},
		{
			ID: "p2", Name: "Toor Dal", Brand: "Tata Sampann", Category: staples,
			Variants: []domain.Variant{
				{ID: "v3", SKU: "DAL-500G", Packaging: "Pouch", SellingPrice: 95.5, StockQuantity: 40, IsActive: true},
			},
		},
		{
			ID: "p3", Name: "Toned Milk", Brand: "Amul", Category: dairy,
			Variants: []domain.Variant{
				{ID: "v4", SKU: "MILK-500ML", Size: "500 ml", SellingPrice: 27, StockQuantity: 0, IsActive: true},
			},
		},
	}
}

// AddAccount registers a customer who can log in with phone and password.
func (s *Server) AddAccount(phone, password string, customer domain.Customer, tenant *domain.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer.Phone = phone
	s.accounts[phone] = &account{password: password, customer: customer, tenant: tenant}
}

// TokenTTL is the lifetime written into issued tokens.
const TokenTTL = 24 * time.Hour

var signingKey = []byte("apitest-signing-key")

// IssueToken returns a valid token for an existing account without a
// login round trip. Tokens are HS256 JWTs with the phone as subject.
func (s *Server) IssueToken(phone string) string {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   phone,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}).SignedString(signingKey)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = phone
	return token
}

// ExpireTokens invalidates every issued token.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// Fail answers every request whose path starts with prefix with status.
// A zero status removes the failure.
func (s *Server) Fail(prefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, prefix)
		return
	}
	s.failures[prefix] = status
}

// SetCart replaces the server-side cart of the account behind phone.
func (s *Server) SetCart(phone string, lines []api.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[phone] = append([]api.CartLine(nil), lines...)
}

func (s *Server) Cart(phone string) []api.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.CartLine(nil), s.carts[phone]...)
}

func (s *Server) Orders(phone string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders[phone]))
	for _, o := range s.orders[phone] {
		out = append(out, *o)
	}
	return out
}

// Calls counts requests by "METHOD /path".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastHeader returns a header of the most recent request.
func (s *Server) LastHeader(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		return ""
	}
	return s.headers.Get(name)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Post("/customer-auth/login", s.login)
	r.Post("/customer-auth/register", s.register)

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/categories", s.categories)
		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/search", s.search)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/customer-auth/me", s.me)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Post("/add", s.addToCart)
			r.Put("/update", s.updateCart)
			r.Delete("/clear", s.clearCart)
			r.Delete("/{variantID}", s.removeFromCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.createOrder)
			r.Get("/", s.listOrders)
			r.Get("/{id}", s.getOrder)
			r.Post("/{id}/cancel", s.cancelOrder)
			r.Get("/{id}/status", s.orderStatus)
		})

		r.Post("/payments/initiate", s.initiatePayment)
		r.Post("/payments/confirm", s.confirmPayment)
	})
	return r
}

type phoneKey struct{}

func withPhone(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, phoneKey{}, phone)
}

func phoneFrom(ctx context.Context) string {
	phone, _ := ctx.Value(phoneKey{}).(string)
	return phone
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		path := strings.TrimSuffix(r.URL.Path, "/")
		s.calls[r.Method+" "+path]++
		s.headers = r.Header.Clone()
		status := 0
		for prefix, code := range s.failures {
			if strings.HasPrefix(r.URL.Path, prefix) {
				status = code
			}
		}
		s.mu.Unlock()

		if status != 0 {
			respondError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		phone, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPhone(r.Context(), phone)))
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	acc, ok := s.accounts[req.Phone]
	s.mu.Unlock()
	if !ok || acc.password != req.Password {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, api.AuthResult{
		Token:    s.IssueToken(req.Phone),
		Customer: acc.customer,
		Tenant:   acc.tenant,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	if _, exists := s.accounts[req.Phone]; exists {
		s.mu.Unlock()
		respondError(w, http.StatusConflict, "phone already registered")
		return
	}
	s.customers++
	acc := &account{
		password: req.Password,
		customer: domain.Customer{
			ID:    domain.ID(fmt.Sprintf("c%d", s.customers)),
			Name:  req.Name,
			Phone: req.Phone,
			Email: req.Email,
		},
		tenant: &domain.Tenant{ID: domain.ID(req.TenantID), Name: "Sharma Kirana"},
	}
	s.accounts[req.Phone] = acc
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, api.AuthResult{
		Token:    s.IssueToken(req.Phone),
		Customer: acc.customer,
		Tenant:   acc.tenant,
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acc := s.accounts[phoneFrom(r.Context())]
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, acc.customer)
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	seen := map[domain.ID]bool{}
	var out []domain.Category
	for _, p := range s.products {
		if !seen[p.Category.ID] {
			seen[p.Category.ID] = true
			out = append(out, p.Category)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) filterProducts(categoryID, search string) []domain.Product {
	var out []domain.Product
	for _, p := range s.products {
		if categoryID != "" && p.Category.ID.String() != categoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products := s.filterProducts(q.Get("category_id"), q.Get("search"))
	respondJSON(w, http.StatusOK, api.ProductPage{
		Products:   products,
		Pagination: domain.Pagination{Total: len(products), Take: len(products)},
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	products := s.filterProducts("", r.URL.Query().Get("q"))
	respondJSON(w, http.StatusOK, api.ProductPage{
		Products:   products,
		Pagination: domain.Pagination{Total: len(products), Take: len(products)},
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, p := range s.products {
		if p.ID.String() == id {
			respondJSON(w, http.StatusOK, p)
			return
		}
	}
	respondError(w, http.StatusNotFound, "product not found")
}

func (s *Server) findVariant(variantID string) (domain.Product, domain.Variant, bool) {
	for _, p := range s.products {
		if v, ok := p.Variant(variantID); ok {
			return p, v, true
		}
	}
	return domain.Product{}, domain.Variant{}, false
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"items": s.Cart(phoneFrom(r.Context()))})
}

type cartRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}
	p, v, ok := s.findVariant(req.VariantID)
	if !ok {
		respondError(w, http.StatusNotFound, "variant not found")
		return
	}
	if !v.Available() {
		respondError(w, http.StatusBadRequest, "variant is out of stock")
		return
	}

	phone := phoneFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[phone]
	for i := range lines {
		if lines[i].VariantID.String() == req.VariantID {
			lines[i].Quantity = min(lines[i].Quantity+req.Quantity, v.StockQuantity)
			respondJSON(w, http.StatusOK, map[string]any{"items": lines})
			return
		}
	}
	price := v.SellingPrice
	stock := v.StockQuantity
	lines = append(lines, api.CartLine{
		ID:                   domain.ID(uuid.NewString()),
		VariantID:            v.ID,
		ProductID:            p.ID,
		ProductName:          p.Name,
		Brand:                p.Brand,
		Size:                 v.Size,
		Packaging:            v.Packaging,
		SellingPriceSnapshot: &price,
		Quantity:             min(req.Quantity, stock),
		StockQuantity:        &stock,
	})
	s.carts[phone] = lines
	respondJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}
	phone := phoneFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[phone]
	for i := range lines {
		if lines[i].VariantID.String() == req.VariantID {
			lines[i].Quantity = req.Quantity
			respondJSON(w, http.StatusOK, map[string]any{"items": lines})
			return
		}
	}
	respondError(w, http.StatusNotFound, "item not found in cart")
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "variantID")
	phone := phoneFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[phone][:0:0]
	for _, line := range s.carts[phone] {
		if line.VariantID.String() != variantID {
			lines = append(lines, line)
		}
	}
	s.carts[phone] = lines
	respondJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.SetCart(phoneFrom(r.Context()), nil)
	respondJSON(w, http.StatusOK, map[string]any{"items": []api.CartLine{}})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req api.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	order := &domain.Order{
		Status:        domain.OrderStatusPlaced,
		InvoiceStatus: "PENDING",
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	for _, item := range req.Items {
		p, v, ok := s.findVariant(item.VariantID)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown variant "+item.VariantID)
			return
		}
		total := v.SellingPrice * domain.Amount(item.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			ID:          domain.ID(uuid.NewString()),
			ProductName: p.Name,
			VariantName: v.Unit(),
			Quantity:    item.Quantity,
			UnitPrice:   v.SellingPrice,
			TotalPrice:  total,
		})
		order.TotalAmount += total
	}

	phone := phoneFrom(r.Context())
	s.mu.Lock()
	s.orderSeq++
	order.ID = domain.ID(fmt.Sprintf("o%d", s.orderSeq))
	order.OrderNumber = fmt.Sprintf("KS-%04d", s.orderSeq)
	order.UpdatedAt = order.CreatedAt
	s.orders[phone] = append(s.orders[phone], order)
	s.carts[phone] = nil
	created := *order
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.Orders(phoneFrom(r.Context()))
	// newest first
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
	respondJSON(w, http.StatusOK, api.OrderPage{
		Orders:     orders,
		Pagination: domain.Pagination{Total: len(orders), Take: len(orders)},
	})
}

// order must be called with s.mu held.
func (s *Server) order(phone, id string) *domain.Order {
	for _, o := range s.orders[phone] {
		if o.ID.String() == id {
			return o
		}
	}
	return nil
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	o := s.order(phoneFrom(r.Context()), chi.URLParam(r, "id"))
	var out domain.Order
	if o != nil {
		out = *o
	}
	s.mu.Unlock()
	if o == nil {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// SetOrderStatus moves an order as the shop would.
func (s *Server) SetOrderStatus(phone, id string, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.order(phone, id); o != nil {
		o.Status = status
		o.UpdatedAt = time.Now().UTC()
	}
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	o := s.order(phoneFrom(r.Context()), chi.URLParam(r, "id"))
	if o == nil {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	if !o.Status.Cancellable() {
		s.mu.Unlock()
		respondError(w, http.StatusBadRequest, "order can no longer be cancelled")
		return
	}
	o.Status = domain.OrderStatusCancelled
	o.InvoiceStatus = "CANCELLED"
	o.UpdatedAt = time.Now().UTC()
	out := *o
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	o := s.order(phoneFrom(r.Context()), chi.URLParam(r, "id"))
	var info domain.OrderStatusInfo
	if o != nil {
		info = domain.OrderStatusInfo{OrderID: o.ID, Status: o.Status, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt}
	}
	s.mu.Unlock()
	if o == nil {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string               `json:"order_id"`
		Method  domain.PaymentMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	o := s.order(phoneFrom(r.Context()), req.OrderID)
	var p api.Payment
	if o != nil {
		p = api.Payment{OrderID: o.ID, Method: req.Method, Status: "PENDING", Amount: o.TotalAmount, Reference: "pay-" + o.ID.String()}
	}
	s.mu.Unlock()
	if o == nil {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	o := s.order(phoneFrom(r.Context()), req.OrderID)
	var p api.Payment
	if o != nil {
		o.InvoiceStatus = "PAID"
		p = api.Payment{OrderID: o.ID, Method: o.PaymentMethod, Status: "PAID", Amount: o.TotalAmount, Reference: "pay-" + o.ID.String()}
	}
	s.mu.Unlock()
	if o == nil {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
