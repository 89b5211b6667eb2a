package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOutage = errors.New("connection refused")

func TestGo_SuccessIsSilent(t *testing.T) {
	rec := notify.NewRecorder(nil)
	r := NewRunner(rec, Settings{})
	defer r.Close()

	var ran atomic.Bool
	r.Go("add to cart", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Wait()

	assert.True(t, ran.Load())
	assert.Equal(t, 0, rec.Len())
}

func TestGo_FailureIsReported(t *testing.T) {
	rec := notify.NewRecorder(nil)
	r := NewRunner(rec, Settings{})
	defer r.Close()

	r.Go("remove item", func(context.Context) error { return errOutage })
	r.Wait()

	events := rec.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, "remove item", events[0].Message)
	assert.ErrorIs(t, events[0].Err, errOutage)
}

func TestGo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	rec := notify.NewRecorder(nil)
	r := NewRunner(rec, Settings{MaxFailures: 2, Cooldown: time.Minute})
	defer r.Close()

	for i := 0; i < 2; i++ {
		r.Go("sync", func(context.Context) error { return errOutage })
		r.Wait()
	}
	assert.Equal(t, gobreaker.StateOpen, r.State())

	var calls atomic.Int32
	r.Go("sync", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	r.Wait()

	assert.Equal(t, int32(0), calls.Load())
	events := rec.Drain()
	require.Len(t, events, 3)
	assert.ErrorIs(t, events[2].Err, gobreaker.ErrOpenState)
}

func TestGo_IsFailureExcludesClientErrors(t *testing.T) {
	errRejected := errors.New("quantity must be between 1 and 99")
	rec := notify.NewRecorder(nil)
	r := NewRunner(rec, Settings{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errRejected) },
	})
	defer r.Close()

	r.Go("update quantity", func(context.Context) error { return errRejected })
	r.Wait()

	assert.Equal(t, gobreaker.StateClosed, r.State())
	assert.Equal(t, 1, rec.Len())
}

func TestGo_TimeoutBoundsTask(t *testing.T) {
	rec := notify.NewRecorder(nil)
	r := NewRunner(rec, Settings{Timeout: 20 * time.Millisecond})
	defer r.Close()

	r.Go("load cart", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Wait()

	events := rec.Drain()
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, context.DeadlineExceeded)
}

func TestClose_CancelsWithoutReporting(t *testing.T) {
	rec := notify.NewRecorder(nil)
	r := NewRunner(rec, Settings{})

	started := make(chan struct{})
	r.Go("load cart", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	r.Close()

	assert.Equal(t, 0, rec.Len())
}
