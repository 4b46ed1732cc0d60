// Package events delivers domain events buffered on aggregates to the
// handlers registered for them.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/slogx"
)

// Source is anything that buffers domain events. Every aggregate in the
// domain package satisfies it.
type Source interface {
	DrainEvents() []domain.Event
}

// Handler reacts to one event. A returned error is logged, never propagated.
type Handler func(ctx context.Context, ev domain.Event) error

// Registry maps event names to their handlers, in call order.
type Registry map[string][]Handler

// On appends h to the handlers for name.
func (r Registry) On(name string, h Handler) Registry {
	r[name] = append(r[name], h)
	return r
}

type Bus struct {
	handlers Registry
}

// NewBus copies the registry, so later changes to it are not observed.
func NewBus(handlers Registry) *Bus {
	cp := make(Registry, len(handlers))
	for name, hs := range handlers {
		cp[name] = append([]Handler(nil), hs...)
	}
	return &Bus{handlers: cp}
}

// DispatchEventsFromAggregate drains src and delivers its events in emission
// order. Call it only once the mutation that produced the events has been
// persisted. Handler failures and panics are logged and swallowed so the
// remaining events are still delivered.
func (b *Bus) DispatchEventsFromAggregate(ctx context.Context, src Source) {
	if b == nil || src == nil {
		return
	}
	for _, ev := range src.DrainEvents() {
		b.dispatch(ctx, ev)
	}
}

// Dispatch drains every source in turn.
func (b *Bus) Dispatch(ctx context.Context, srcs ...Source) {
	for _, src := range srcs {
		b.DispatchEventsFromAggregate(ctx, src)
	}
}

func (b *Bus) dispatch(ctx context.Context, ev domain.Event) {
	l := slogx.FromContext(ctx)
	hs := b.handlers[ev.Name]
	if len(hs) == 0 {
		l.Debug("no handlers for event", slog.String("event", ev.Name))
		return
	}
	for i, h := range hs {
		if err := safeCall(ctx, h, ev); err != nil {
			l.Error("event handler failed",
				slog.String("event", ev.Name),
				slog.String("aggregate_id", ev.AggregateID.String()),
				slog.Int("handler", i),
				slog.Any("error", err),
			)
		}
	}
}

func safeCall(ctx context.Context, h Handler, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
