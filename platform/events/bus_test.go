package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"salescrm_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
}

func (testEvent) EventName() string { return "test.event" }

func TestPublishRunsHandlersAsynchronously(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	var calls atomic.Int32

	for range 3 {
		bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if calls.Load() != 3 {
		t.Fatalf("expected 3 handler calls, got %d", calls.Load())
	}
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	var reached atomic.Bool

	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
		reached.Store(true)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if !reached.Load() {
		t.Fatal("expected second handler to run despite panic in first")
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	first := errors.New("first")
	second := errors.New("second")

	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { return first }))
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { return second }))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestPublishDetachesFromCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var sawCancel atomic.Bool

	bus.Subscribe("test.event", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if sawCancel.Load() {
		t.Fatal("expected handler context to be detached from the cancelled request")
	}
}
