// Package app wires the storefront client together: persistent store, API
// client, background sync, cart mirror, session and orders.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/background"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config   *config.Config
	Store    kvstore.Store
	API      *api.Client
	Tasks    *background.Runner
	Cart     *cart.Cache
	Session  *session.Store
	Orders   *orders.Service
	notifier notify.Notifier
}

// OpenStore opens the persistent store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return kvstore.NewRedisStore(client, cfg.DeviceID, cfg.RedisTTL), nil

	case config.DriverMemory:
		return kvstore.NewMemoryStore(), nil

	default:
		store, err := kvstore.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}

func New(ctx context.Context, cfg *config.Config, notifier notify.Notifier) (*App, error) {
	kv, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Assemble(ctx, cfg, kv, notifier), nil
}

// Assemble builds the client on an already open store. A persisted session
// is restored before it returns; if one was found, a cart reconcile is
// started in the background.
func Assemble(ctx context.Context, cfg *config.Config, kv kvstore.Store, notifier notify.Notifier) *App {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.TenantID, cfg.RequestTimeout)
	tasks := background.NewRunner(notifier, background.Settings{
		Timeout:     cfg.SyncTimeout,
		MaxFailures: cfg.BreakerFailures,
		Cooldown:    cfg.BreakerCooldown,
		IsFailure:   api.IsUnavailable,
	})
	cartCache := cart.NewCache(ctx, kv, client, tasks, notifier, cfg.DefaultMaxQuantity)
	sess := session.NewStore(ctx, kv, cartCache, tasks)

	client.SetTokenSource(sess)
	client.OnUnauthorized(func(token string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		expired, err := sess.Expire(ctx, token)
		if err != nil {
			log.Printf("forced logout error: %v \n", err)
		}
		if expired {
			notifier.Warn("session expired, please log in again", api.ErrUnauthorized)
		}
	})

	if sess.IsAuthenticated() {
		tasks.Go("load cart", cartCache.LoadCart)
	}

	return &App{
		Config:   cfg,
		Store:    kv,
		API:      client,
		Tasks:    tasks,
		Cart:     cartCache,
		Session:  sess,
		Orders:   orders.NewService(client, cartCache, sess),
		notifier: notifier,
	}
}

func (a *App) Login(ctx context.Context, phone, password string) (*domain.Identity, error) {
	res, err := a.API.Login(ctx, api.LoginRequest{Phone: phone, Password: password})
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, res)
}

func (a *App) Register(ctx context.Context, req api.RegisterRequest) (*domain.Identity, error) {
	res, err := a.API.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.startSession(ctx, res)
}

func (a *App) startSession(ctx context.Context, res *api.AuthResult) (*domain.Identity, error) {
	if err := a.Session.Login(ctx, res.Token, res.Customer, res.Tenant); err != nil {
		// the session works for this run; it just won't survive a restart
		a.notifier.Warn("session not saved on this device", err)
	}
	id := a.Session.Identity()
	return &id, nil
}

func (a *App) Logout(ctx context.Context) error {
	return a.Session.Logout(ctx)
}

// RefreshProfile pulls the customer profile from the server into the
// session.
func (a *App) RefreshProfile(ctx context.Context) (*domain.Customer, error) {
	if !a.Session.IsAuthenticated() {
		return nil, orders.ErrNotAuthenticated
	}
	customer, err := a.API.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Session.UpdateCustomer(ctx, *customer); err != nil {
		a.notifier.Warn("profile not saved on this device", err)
	}
	return customer, nil
}

// Close stops background sync and closes the store.
func (a *App) Close() error {
	a.Tasks.Close()
	return a.Store.Close()
}
