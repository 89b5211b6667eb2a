// Package background runs fire-and-forget tasks whose failures are only
// reported, never returned to the caller that scheduled them.
package background

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	// Timeout bounds a single task. Zero leaves it to the task's own
	// transport.
	Timeout time.Duration

	// MaxFailures consecutive outages open the breaker; while open, tasks
	// fail fast with gobreaker.ErrOpenState until Cooldown has passed.
	MaxFailures uint32
	Cooldown    time.Duration

	// IsFailure decides which task errors count as an outage. Nil counts
	// every error.
	IsFailure func(err error) bool
}

// Scheduler runs work detached from the caller. Components that only
// schedule sync depend on this rather than on *Runner.
type Scheduler interface {
	Go(name string, task func(ctx context.Context) error)
}

var _ Scheduler = (*Runner)(nil)

type Runner struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	breaker  *gobreaker.CircuitBreaker[struct{}]
	notifier notify.Notifier
	timeout  time.Duration
}

func NewRunner(notifier notify.Notifier, settings Settings) *Runner {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	isFailure := settings.IsFailure

	ctx, cancel := context.WithCancel(context.Background())
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "background-sync",
		Timeout: settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			if isFailure == nil {
				return false
			}
			return !isFailure(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Runner{
		ctx:      ctx,
		cancel:   cancel,
		breaker:  breaker,
		notifier: notifier,
		timeout:  settings.Timeout,
	}
}

// Go runs task on its own goroutine. A failure is logged and sent to the
// notifier under name; cancellation by Close is not reported.
func (r *Runner) Go(name string, task func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx := r.ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		_, err := r.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, task(ctx)
		})
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("background %s error: %v \n", name, err)
		r.notifier.Warn(name, err)
	}()
}

// Wait blocks until every scheduled task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// State reports the breaker state, for diagnostics.
func (r *Runner) State() gobreaker.State {
	return r.breaker.State()
}

// Close cancels in-flight tasks and waits for them to return.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
