// Package session holds the signed-in customer's identity and keeps it in
// step with the device's persistent store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/internal/background"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
)

var ErrEmptyToken = errors.New("login requires a token")

// CartCache is the part of the cart the session drives: reconcile after
// login and a local-only wipe on logout.
type CartCache interface {
	LoadCart(ctx context.Context) error
	ClearCart(ctx context.Context, localOnly bool) error
	// Invalidate discards reconciles started under the previous session.
	Invalidate()
}

type Store struct {
	kv    kvstore.Store
	cart  CartCache
	tasks background.Scheduler

	mu       sync.Mutex // serializes login, logout and profile writes
	identity atomic.Pointer[domain.Identity]
}

// NewStore restores any persisted session before returning, so a relaunch
// is signed in without touching the network. Restore problems are logged
// and leave the affected field empty.
func NewStore(ctx context.Context, kv kvstore.Store, cart CartCache, tasks background.Scheduler) *Store {
	s := &Store{kv: kv, cart: cart, tasks: tasks}
	s.identity.Store(s.restore(ctx))
	return s
}

func (s *Store) restore(ctx context.Context) *domain.Identity {
	id := &domain.Identity{}

	token, err := s.kv.Get(ctx, kvstore.KeyAuthToken)
	switch {
	case err == nil:
		id.Token = token
	case !errors.Is(err, kvstore.ErrNotFound):
		log.Printf("restore token error: %v \n", err)
	}

	var customer domain.Customer
	if err := kvstore.GetJSON(ctx, s.kv, kvstore.KeyCustomer, &customer); err == nil {
		id.Customer = &customer
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		log.Printf("restore customer error: %v \n", err)
	}

	var tenant domain.Tenant
	if err := kvstore.GetJSON(ctx, s.kv, kvstore.KeyTenant, &tenant); err == nil {
		id.Tenant = &tenant
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		log.Printf("restore tenant error: %v \n", err)
	}

	return id
}

// Login records a successful authentication and schedules a cart
// reconcile. The session is live in memory even when persisting it fails;
// the returned error then only means it will not survive a relaunch.
func (s *Store) Login(ctx context.Context, token string, customer domain.Customer, tenant *domain.Tenant) error {
	if token == "" {
		return ErrEmptyToken
	}

	id := &domain.Identity{Token: token, Customer: &customer}
	if tenant != nil {
		t := *tenant
		id.Tenant = &t
	}

	s.mu.Lock()
	var errs []error
	if err := s.kv.Set(ctx, kvstore.KeyAuthToken, token); err != nil {
		errs = append(errs, err)
	}
	if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyCustomer, customer); err != nil {
		errs = append(errs, err)
	}
	if id.Tenant != nil {
		if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyTenant, id.Tenant); err != nil {
			errs = append(errs, err)
		}
	} else if err := s.kv.Delete(ctx, kvstore.KeyTenant); err != nil {
		errs = append(errs, err)
	}
	s.identity.Store(id)
	// a reconcile still running for the previous token must not land
	s.cart.Invalidate()
	s.mu.Unlock()

	s.tasks.Go("load cart", s.cart.LoadCart)

	if err := errors.Join(errs...); err != nil {
		log.Printf("persist session error: %v \n", err)
		return fmt.Errorf("persist session failed: %w", err)
	}
	return nil
}

// Logout wipes the session. The cart is cleared locally only since the
// credential for a server call is the thing being discarded. Memory is
// always reset, even if storage could not be cleaned.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logout(ctx)
}

// Expire logs out only if token is still the active one. A 401 for a
// token that was already replaced by a newer login is ignored.
func (s *Store) Expire(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || s.identity.Load().Token != token {
		return false, nil
	}
	log.Printf("session expired, logging out \n")
	return true, s.logout(ctx)
}

func (s *Store) logout(ctx context.Context) error {
	var errs []error
	if err := s.cart.ClearCart(ctx, true); err != nil {
		errs = append(errs, err)
	}
	if err := s.kv.Delete(ctx, kvstore.SessionKeys...); err != nil {
		errs = append(errs, err)
	}
	s.identity.Store(&domain.Identity{})

	if err := errors.Join(errs...); err != nil {
		log.Printf("logout cleanup error: %v \n", err)
		return fmt.Errorf("logout cleanup failed: %w", err)
	}
	return nil
}

// UpdateCustomer replaces the customer profile and leaves token and tenant
// alone.
func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.identity.Load()
	next.Customer = &customer
	s.identity.Store(&next)

	if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyCustomer, customer); err != nil {
		log.Printf("persist customer error: %v \n", err)
		return fmt.Errorf("persist customer failed: %w", err)
	}
	return nil
}

func (s *Store) SetTenant(ctx context.Context, tenant domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.identity.Load()
	next.Tenant = &tenant
	s.identity.Store(&next)

	if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyTenant, tenant); err != nil {
		log.Printf("persist tenant error: %v \n", err)
		return fmt.Errorf("persist tenant failed: %w", err)
	}
	return nil
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	return s.identity.Load().Token
}

// Identity returns a snapshot; later logins do not change it.
func (s *Store) Identity() domain.Identity {
	id := *s.identity.Load()
	if id.Customer != nil {
		c := *id.Customer
		id.Customer = &c
	}
	if id.Tenant != nil {
		t := *id.Tenant
		id.Tenant = &t
	}
	return id
}

func (s *Store) IsAuthenticated() bool {
	return s.identity.Load().IsAuthenticated()
}

func (s *Store) Customer() *domain.Customer {
	return s.Identity().Customer
}

func (s *Store) Tenant() *domain.Tenant {
	return s.Identity().Tenant
}
