package events

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/quantapay/gateway/internal/domain"
)

func TestEmitter_FansOut(t *testing.T) {
	emitter := NewEmitter(nil)

	var mu sync.Mutex
	var first, second []domain.Event

	emitter.Subscribe(func(ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		first = append(first, ev)
	})
	emitter.Subscribe(func(ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, ev)
	})

	ev := domain.Event{ID: uuid.New(), Type: "payment", ResourceID: uuid.New(), Action: "created"}
	emitter.Emit(ev)
	emitter.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Equal(t, ev.ID, first[0].ID)
	require.Equal(t, "created", second[0].Action)
}

func TestEmitter_PanickingSubscriberIsolated(t *testing.T) {
	emitter := NewEmitter(nil)

	emitter.Subscribe(func(domain.Event) {
		panic("subscriber bug")
	})

	var mu sync.Mutex
	var got []domain.Event
	emitter.Subscribe(func(ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	// Must not panic the caller, and the healthy subscriber still
	// receives every event.
	emitter.Emit(domain.Event{ID: uuid.New(), Action: "created"})
	emitter.Emit(domain.Event{ID: uuid.New(), Action: "completed"})
	emitter.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
}

func TestEmitter_NoSubscribers(t *testing.T) {
	emitter := NewEmitter(nil)
	emitter.Emit(domain.Event{ID: uuid.New(), Action: "created"})
	emitter.Flush()
}
