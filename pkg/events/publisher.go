package events

import (
	"context"
	"errors"
)

// EventPublisher records delivery events.
type EventPublisher interface {
	PublishDelivery(ctx context.Context, event *DeliveryEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishDelivery is a no-op.
func (p *NoOpPublisher) PublishDelivery(_ context.Context, _ *DeliveryEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *DeliveryEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *DeliveryEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishDelivery calls the callback.
func (p *CallbackPublisher) PublishDelivery(ctx context.Context, event *DeliveryEvent) error {
	return p.callback(ctx, event)
}

// MultiPublisher fans an event out to every publisher. All publishers are called even when
// one fails; the errors are joined.
type MultiPublisher struct {
	publishers []EventPublisher
}

// NewMultiPublisher creates a MultiPublisher, skipping nil entries.
func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Len returns the number of wrapped publishers.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}

// PublishDelivery publishes to every wrapped publisher.
func (m *MultiPublisher) PublishDelivery(ctx context.Context, event *DeliveryEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishDelivery(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
