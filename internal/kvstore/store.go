package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys persisted by the storefront client.
const (
	KeyAuthToken = "auth_token"
	KeyCustomer  = "customer"
	KeyTenant    = "tenant"
	KeyCart      = "cart"
)

// SessionKeys are removed together on logout.
var SessionKeys = []string{KeyAuthToken, KeyCustomer, KeyTenant, KeyCart}

var ErrNotFound = errors.New("key not found")

// Store is durable string storage local to one device or browser profile.
// Values are opaque; structured values are JSON encoded by the caller.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
