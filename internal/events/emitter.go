// Package events fans lifecycle notifications out to subscribers.
// Delivery is fire-and-forget: a failing subscriber never affects
// engine state or the other subscribers.
package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
)

type Subscriber func(domain.Event)

type Emitter struct {
	mu     sync.RWMutex
	subs   []Subscriber
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{logger: logger}
}

func (e *Emitter) Subscribe(fn Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

// Emit delivers the event to every subscriber in its own goroutine.
// Panics are recovered and logged rather than rethrown so that
// observability can never compromise the primary operation.
func (e *Emitter) Emit(ev domain.Event) {
	e.mu.RLock()
	subs := make([]Subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for i, fn := range subs {
		e.wg.Add(1)
		go func(idx int, deliver Subscriber) {
			defer e.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("event subscriber panicked",
						"subscriber", idx,
						"event_id", ev.ID,
						"action", ev.Action,
						logging.Err(fmt.Errorf("%v", r)),
					)
				}
			}()
			deliver(ev)
		}(i, fn)
	}
}

// Flush blocks until in-flight deliveries finish. Test hook.
func (e *Emitter) Flush() {
	e.wg.Wait()
}
