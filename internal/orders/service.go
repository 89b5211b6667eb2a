// Package orders turns the cart into orders and follows them afterwards.
// Unlike cart sync, every call here is one the customer waits on: errors
// are returned and nothing local changes until the server confirms.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrNotAuthenticated     = errors.New("sign in to continue")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrNotCancellable       = errors.New("order can no longer be cancelled")
	ErrNoUPIID              = errors.New("shop has no UPI id")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
)

type Backend interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*domain.Order, error)
	Orders(ctx context.Context, skip, take int) (*api.OrderPage, error)
	Order(ctx context.Context, id string) (*domain.Order, error)
	CancelOrder(ctx context.Context, id string) (*domain.Order, error)
	OrderStatus(ctx context.Context, id string) (*domain.OrderStatusInfo, error)
	InitiatePayment(ctx context.Context, orderID string, method domain.PaymentMethod) (*api.Payment, error)
	ConfirmPayment(ctx context.Context, orderID string) (*api.Payment, error)
}

type Cart interface {
	Lines() []domain.CartLine
	Total() float64
	ClearCart(ctx context.Context, localOnly bool) error
	LoadCart(ctx context.Context) error
}

type Session interface {
	Identity() domain.Identity
}

type Service struct {
	backend Backend
	cart    Cart
	session Session
}

func NewService(backend Backend, cart Cart, session Session) *Service {
	return &Service{backend: backend, cart: cart, session: session}
}

// Receipt is a placed order. PaymentURI is set when the order is paid by
// UPI and the shop has a UPI id.
type Receipt struct {
	Order      *domain.Order
	PaymentURI string
}

func (s *Service) identity() (domain.Identity, error) {
	id := s.session.Identity()
	if !id.IsAuthenticated() {
		return id, ErrNotAuthenticated
	}
	return id, nil
}

// PlaceOrder submits the cart. On failure the cart is left as it was; on
// success it is cleared and then reloaded from the server.
func (s *Service) PlaceOrder(ctx context.Context, method domain.PaymentMethod) (*Receipt, error) {
	id, err := s.identity()
	if err != nil {
		return nil, err
	}
	if _, ok := domain.ParsePaymentMethod(string(method)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	req := api.CreateOrderRequest{
		Items:         make([]api.OrderLine, 0, len(lines)),
		PaymentMethod: method,
		Total:         s.cart.Total(),
	}
	if id.Customer != nil {
		req.CustomerID = id.Customer.ID.String()
	}
	for _, line := range lines {
		req.Items = append(req.Items, api.OrderLine{
			VariantID: line.VariantID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}

	order, err := s.backend.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("place order failed: %w", err)
	}

	if err := s.cart.ClearCart(ctx, false); err != nil {
		log.Printf("clear cart after order error: %v \n", err)
	}
	if err := s.cart.LoadCart(ctx); err != nil {
		log.Printf("reload cart after order error: %v \n", err)
	}

	receipt := &Receipt{Order: order}
	if method.UsesUPI() && id.Tenant != nil && id.Tenant.UPIID != "" {
		receipt.PaymentURI, _ = UPIPaymentURI(*id.Tenant, order.TotalAmount.Float64())
	}
	return receipt, nil
}

// UPIPaymentURI builds the deep link a UPI app opens to pay the shop.
func UPIPaymentURI(tenant domain.Tenant, amount float64) (string, error) {
	if strings.TrimSpace(tenant.UPIID) == "" {
		return "", ErrNoUPIID
	}
	name := strings.ReplaceAll(url.QueryEscape(tenant.Name), "+", "%20")
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%.2f&cu=INR", tenant.UPIID, name, amount), nil
}

func (s *Service) List(ctx context.Context, skip, take int) (*api.OrderPage, error) {
	if _, err := s.identity(); err != nil {
		return nil, err
	}
	return s.backend.Orders(ctx, skip, take)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := s.identity(); err != nil {
		return nil, err
	}
	return s.backend.Order(ctx, id)
}

func (s *Service) Status(ctx context.Context, id string) (*domain.OrderStatusInfo, error) {
	if _, err := s.identity(); err != nil {
		return nil, err
	}
	return s.backend.OrderStatus(ctx, id)
}

// Cancel cancels an order the shop has not acted on yet. The status is
// checked against the server's current copy first; the server still has
// the final word.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := s.identity(); err != nil {
		return nil, err
	}
	order, err := s.backend.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("%w: order is %s", ErrNotCancellable, order.Status.Label())
	}
	cancelled, err := s.backend.CancelOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel order failed: %w", err)
	}
	return cancelled, nil
}

func (s *Service) InitiatePayment(ctx context.Context, orderID string, method domain.PaymentMethod) (*api.Payment, error) {
	if _, err := s.identity(); err != nil {
		return nil, err
	}
	return s.backend.InitiatePayment(ctx, orderID, method)
}

func (s *Service) ConfirmPayment(ctx context.Context, orderID string) (*api.Payment, error) {
	if _, err := s.identity(); err != nil {
		return nil, err
	}
	return s.backend.ConfirmPayment(ctx, orderID)
}
