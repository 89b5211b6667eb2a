// Package cart mirrors the server-side cart on the device. Mutations land
// in memory and local storage first and are pushed to the server in the
// background; LoadCart replaces the mirror with the server's copy.
package cart

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/background"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxQuantity caps a reconciled line whose server copy carries no
// stock count.
const DefaultMaxQuantity = 999

// Remote is the server cart the mirror follows.
type Remote interface {
	GetCart(ctx context.Context) ([]api.CartLine, error)
	AddToCart(ctx context.Context, variantID string, quantity int) error
	UpdateCartItem(ctx context.Context, variantID string, quantity int) error
	RemoveCartItem(ctx context.Context, variantID string) error
	ClearCart(ctx context.Context) error
}

type Cache struct {
	kv         kvstore.Store
	remote     Remote
	tasks      background.Scheduler
	notifier   notify.Notifier
	defaultMax int

	mu   sync.RWMutex
	cart domain.Cart
	gen  uint64             // bumped by ClearCart and Invalidate; a reconcile started before is dropped
	sfg  singleflight.Group // collapses concurrent reconciles of one generation
}

// NewCache seeds the mirror from local storage. The result may be stale
// until the first LoadCart.
func NewCache(ctx context.Context, kv kvstore.Store, remote Remote, tasks background.Scheduler, notifier notify.Notifier, defaultMax int) *Cache {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if defaultMax <= 0 {
		defaultMax = DefaultMaxQuantity
	}
	c := &Cache{
		kv:         kv,
		remote:     remote,
		tasks:      tasks,
		notifier:   notifier,
		defaultMax: defaultMax,
	}

	var lines []domain.CartLine
	err := kvstore.GetJSON(ctx, kv, kvstore.KeyCart, &lines)
	switch {
	case err == nil:
		c.cart.Replace(lines)
	case !errors.Is(err, kvstore.ErrNotFound):
		log.Printf("restore cart error: %v \n", err)
	}
	return c
}

// save writes the current lines to local storage. Callers hold c.mu so
// storage sees writes in the same order as memory.
func (c *Cache) save(ctx context.Context) error {
	var err error
	if c.cart.Len() == 0 {
		err = c.kv.Delete(ctx, kvstore.KeyCart)
	} else {
		err = kvstore.SetJSON(ctx, c.kv, kvstore.KeyCart, c.cart.Lines())
	}
	if err != nil {
		log.Printf("save cart error: %v \n", err)
		c.notifier.Warn("save cart", err)
	}
	return err
}

// AddItem adds quantity of item, merging with an existing line and capping
// at item.MaxQuantity. The returned line is the committed local state; the
// server call runs afterwards and its failure is only reported.
func (c *Cache) AddItem(ctx context.Context, item domain.LineItem, quantity int) (domain.CartLine, error) {
	c.mu.Lock()
	line, err := c.cart.Add(item, quantity)
	if err != nil {
		c.mu.Unlock()
		return domain.CartLine{}, err
	}
	_ = c.save(ctx)
	c.mu.Unlock()

	c.tasks.Go("add to cart", func(ctx context.Context) error {
		return c.remote.AddToCart(ctx, item.VariantID, quantity)
	})
	return line, nil
}

// UpdateQuantity sets the quantity of a line, clamped to [1, MaxQuantity].
// A quantity of zero or less removes the line. It reports false when the
// line is absent afterwards.
func (c *Cache) UpdateQuantity(ctx context.Context, variantID string, quantity int) (domain.CartLine, bool) {
	if quantity <= 0 {
		c.RemoveItem(ctx, variantID)
		return domain.CartLine{}, false
	}

	c.mu.Lock()
	line, ok := c.cart.SetQuantity(variantID, quantity)
	if !ok {
		c.mu.Unlock()
		return domain.CartLine{}, false
	}
	_ = c.save(ctx)
	c.mu.Unlock()

	c.tasks.Go("update cart", func(ctx context.Context) error {
		return c.remote.UpdateCartItem(ctx, variantID, line.Quantity)
	})
	return line, true
}

// RemoveItem drops the line locally and asks the server to do the same.
// The server is asked even when the line was not held locally, since the
// mirror may be stale.
func (c *Cache) RemoveItem(ctx context.Context, variantID string) bool {
	c.mu.Lock()
	removed := c.cart.Remove(variantID)
	if removed {
		_ = c.save(ctx)
	}
	c.mu.Unlock()

	c.tasks.Go("remove from cart", func(ctx context.Context) error {
		return c.remote.RemoveCartItem(ctx, variantID)
	})
	return removed
}

// ClearCart empties the cart. Unless localOnly, the server cart is cleared
// first; a server failure is reported and the local cart is cleared anyway.
// The returned error only covers local storage.
func (c *Cache) ClearCart(ctx context.Context, localOnly bool) error {
	if !localOnly {
		if err := c.remote.ClearCart(ctx); err != nil {
			log.Printf("clear cart error: %v \n", err)
			c.notifier.Warn("clear cart", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cart.Clear()
	return c.save(ctx)
}

// Invalidate drops the result of any reconcile already in flight without
// touching the lines. The next LoadCart fetches afresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
}

// LoadCart replaces the mirror with the server's cart. An empty server cart
// empties the mirror; a failed fetch leaves it untouched. Calls only share
// a fetch when no clear or invalidation happened in between.
func (c *Cache) LoadCart(ctx context.Context) error {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	_, err, _ := c.sfg.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		remote, err := c.remote.GetCart(ctx)
		if err != nil {
			log.Printf("load cart error: %v \n", err)
			return nil, err
		}
		lines := fromServer(remote, c.defaultMax)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			log.Printf("load cart: cart cleared or session changed while loading, dropping result \n")
			return nil, nil
		}
		c.cart.Replace(lines)
		_ = c.save(ctx)
		return nil, nil
	})
	return err
}

// fromServer maps server lines into the local shape. Missing prices become
// zero and a missing stock count becomes defaultMax. A quantity above a
// reported stock count is clamped like a local update; non-positive
// quantities pass through so Replace drops them.
func fromServer(remote []api.CartLine, defaultMax int) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(remote))
	for _, r := range remote {
		var price float64
		switch {
		case r.SellingPriceSnapshot != nil:
			price = r.SellingPriceSnapshot.Float64()
		case r.Price != nil:
			price = r.Price.Float64()
		}

		maxQuantity := defaultMax
		quantity := r.Quantity
		if r.StockQuantity != nil {
			maxQuantity = *r.StockQuantity
			if quantity > 0 {
				quantity = domain.ClampQuantity(quantity, maxQuantity)
			}
		}

		unit := r.Size
		if unit == "" {
			unit = r.Packaging
		}
		if unit == "" {
			unit = r.VariantName
		}

		image := r.VariantImageURL
		if image == "" {
			image = r.ProductImageURL
		}

		lines = append(lines, domain.CartLine{
			LineItem: domain.LineItem{
				VariantID:   r.VariantID.String(),
				ProductID:   r.ProductID.String(),
				ProductName: r.ProductName,
				Brand:       r.Brand,
				Unit:        unit,
				ImageURL:    image,
				UnitPrice:   price,
				MaxQuantity: maxQuantity,
			},
			Quantity: quantity,
		})
	}
	return lines
}

func (c *Cache) Lines() []domain.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cart.Lines()
}

func (c *Cache) Find(variantID string) (domain.CartLine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cart.Find(variantID)
}

// Total is the sum of unit price times quantity over all lines.
func (c *Cache) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cart.Total()
}

// ItemCount is the number of units in the cart, not the number of lines.
func (c *Cache) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cart.ItemCount()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cart.Len()
}
