// Package notify carries non-blocking warnings from background work to
// whatever is showing output to the customer.
package notify

import (
	"log"
	"sync"
	"time"
)

type Notifier interface {
	Warn(message string, err error)
}

// LogNotifier writes warnings to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Warn(message string, err error) {
	log.Printf("warning: %s: %v \n", message, err)
}

type Event struct {
	Message string
	Err     error
	At      time.Time
}

// Recorder keeps warnings until they are drained, optionally forwarding
// each one to another Notifier.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	next   Notifier
}

func NewRecorder(next Notifier) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Warn(message string, err error) {
	r.mu.Lock()
	r.events = append(r.events, Event{Message: message, Err: err, At: time.Now()})
	r.mu.Unlock()

	if r.next != nil {
		r.next.Warn(message, err)
	}
}

// Drain returns recorded events and forgets them.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
