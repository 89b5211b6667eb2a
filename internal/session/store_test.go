package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCart struct {
	mu       sync.RWMutex
	loads    int
	clears   []bool
	clearErr error
	events   []string
}

func (m *mockCart) LoadCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	m.events = append(m.events, "load")
	return nil
}

func (m *mockCart) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, "invalidate")
}

func (m *mockCart) ClearCart(ctx context.Context, localOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears = append(m.clears, localOnly)
	return m.clearErr
}

// inlineScheduler runs tasks on the caller's goroutine.
type inlineScheduler struct {
	names []string
}

func (s *inlineScheduler) Go(name string, task func(ctx context.Context) error) {
	s.names = append(s.names, name)
	_ = task(context.Background())
}

type failingStore struct {
	*kvstore.MemoryStore
	err error
}

func (f failingStore) Set(ctx context.Context, key, value string) error {
	return f.err
}

func setupStore(t *testing.T, kv kvstore.Store) (*Store, *mockCart, *inlineScheduler) {
	t.Helper()
	cart := &mockCart{}
	tasks := &inlineScheduler{}
	return NewStore(context.Background(), kv, cart, tasks), cart, tasks
}

var (
	asha   = domain.Customer{ID: "c1", Name: "Asha", Phone: "9876543210"}
	sharma = &domain.Tenant{ID: "1", Name: "Sharma Kirana", UPIID: "sharma@upi"}
)

func TestNewStore_Anonymous(t *testing.T) {
	s, _, _ := setupStore(t, kvstore.NewMemoryStore())

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.Customer())
	assert.Nil(t, s.Tenant())
}

func TestLogin_PersistsAndSchedulesReconcile(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s, cart, tasks := setupStore(t, kv)

	require.NoError(t, s.Login(ctx, "tok-1", asha, sharma))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-1", s.Token())
	assert.Equal(t, "Asha", s.Customer().Name)
	assert.Equal(t, "sharma@upi", s.Tenant().UPIID)

	token, err := kv.Get(ctx, kvstore.KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	var stored domain.Customer
	require.NoError(t, kvstore.GetJSON(ctx, kv, kvstore.KeyCustomer, &stored))
	assert.Equal(t, asha, stored)

	assert.Equal(t, []string{"load cart"}, tasks.names)
	assert.Equal(t, 1, cart.loads)
}

func TestLogin_InvalidatesPendingReconcileFirst(t *testing.T) {
	ctx := context.Background()
	s, cart, _ := setupStore(t, kvstore.NewMemoryStore())

	require.NoError(t, s.Login(ctx, "tok-1", asha, sharma))
	require.NoError(t, s.Login(ctx, "tok-2", asha, sharma))

	assert.Equal(t, []string{"invalidate", "load", "invalidate", "load"}, cart.events)
}

func TestLogin_EmptyToken(t *testing.T) {
	s, cart, _ := setupStore(t, kvstore.NewMemoryStore())

	err := s.Login(context.Background(), "", asha, nil)
	assert.ErrorIs(t, err, ErrEmptyToken)
	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, cart.loads)
}

func TestLogin_WithoutTenantDropsStaleTenant(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s, _, _ := setupStore(t, kv)

	require.NoError(t, s.Login(ctx, "tok-1", asha, sharma))
	require.NoError(t, s.Login(ctx, "tok-2", asha, nil))

	assert.Nil(t, s.Tenant())
	_, err := kv.Get(ctx, kvstore.KeyTenant)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestLogin_PersistFailureKeepsMemorySession(t *testing.T) {
	storageErr := errors.New("disk full")
	s, cart, _ := setupStore(t, failingStore{MemoryStore: kvstore.NewMemoryStore(), err: storageErr})

	err := s.Login(context.Background(), "tok-1", asha, sharma)
	require.Error(t, err)
	assert.ErrorIs(t, err, storageErr)

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, 1, cart.loads)
}

func TestRestore_Relaunch(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	first, _, _ := setupStore(t, kv)
	require.NoError(t, first.Login(ctx, "tok-1", asha, sharma))

	relaunched, cart, tasks := setupStore(t, kv)

	assert.True(t, relaunched.IsAuthenticated())
	assert.Equal(t, "tok-1", relaunched.Token())
	assert.Equal(t, asha, *relaunched.Customer())
	assert.Equal(t, *sharma, *relaunched.Tenant())
	// restoring never reaches for the network
	assert.Zero(t, cart.loads)
	assert.Empty(t, tasks.names)
}

func TestRestore_CorruptProfileIsSkipped(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, kvstore.KeyAuthToken, "tok-1"))
	require.NoError(t, kv.Set(ctx, kvstore.KeyCustomer, "{not json"))

	s, _, _ := setupStore(t, kv)

	assert.True(t, s.IsAuthenticated())
	assert.Nil(t, s.Customer())
}

func TestLogout_ClearsEverythingLocally(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s, cart, _ := setupStore(t, kv)
	require.NoError(t, s.Login(ctx, "tok-1", asha, sharma))
	require.NoError(t, kv.Set(ctx, kvstore.KeyCart, "[]"))

	require.NoError(t, s.Logout(ctx))

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.Customer())
	assert.Equal(t, []bool{true}, cart.clears)
	assert.Zero(t, kv.Len())
}

func TestLogout_CartErrorStillResets(t *testing.T) {
	ctx := context.Background()
	s, cart, _ := setupStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.Login(ctx, "tok-1", asha, nil))
	cart.clearErr = errors.New("storage locked")

	err := s.Logout(ctx)
	require.Error(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestExpire_OnlyActiveToken(t *testing.T) {
	ctx := context.Background()
	s, cart, _ := setupStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.Login(ctx, "tok-new", asha, nil))

	expired, err := s.Expire(ctx, "tok-old")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.True(t, s.IsAuthenticated())
	assert.Empty(t, cart.clears)

	expired, err = s.Expire(ctx, "tok-new")
	require.NoError(t, err)
	assert.True(t, expired)
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, []bool{true}, cart.clears)
}

func TestUpdateCustomer_KeepsTokenAndTenant(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s, _, _ := setupStore(t, kv)
	require.NoError(t, s.Login(ctx, "tok-1", asha, sharma))

	updated := asha
	updated.Email = "asha@example.com"
	require.NoError(t, s.UpdateCustomer(ctx, updated))

	assert.Equal(t, "tok-1", s.Token())
	assert.Equal(t, "asha@example.com", s.Customer().Email)
	assert.Equal(t, "Sharma Kirana", s.Tenant().Name)

	var stored domain.Customer
	require.NoError(t, kvstore.GetJSON(ctx, kv, kvstore.KeyCustomer, &stored))
	assert.Equal(t, updated, stored)
}

func TestSetTenant(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s, _, _ := setupStore(t, kv)

	require.NoError(t, s.SetTenant(ctx, domain.Tenant{ID: "9", Name: "Gupta Stores"}))
	assert.Equal(t, "Gupta Stores", s.Tenant().Name)
	assert.False(t, s.IsAuthenticated())

	var stored domain.Tenant
	require.NoError(t, kvstore.GetJSON(ctx, kv, kvstore.KeyTenant, &stored))
	assert.Equal(t, "9", stored.ID.String())
}

func TestIdentity_IsSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.Login(ctx, "tok-1", asha, sharma))

	snap := s.Identity()
	snap.Customer.Name = "changed"

	assert.Equal(t, "Asha", s.Customer().Name)
}
