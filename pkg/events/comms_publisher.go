package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/opspawn/agentkit/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// DeliverySubject is the global subject; per-agent subjects are derived from it.
	DeliverySubject string
}

// CommsPublisher fans delivery events out over NATS.
type CommsPublisher struct {
	nc   *comms.Conn
	base string
}

// NewCommsPublisher creates a CommsPublisher on nc.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{nc: nc, base: commsutil.SubjectDelivery}
	if opts != nil && opts.DeliverySubject != "" {
		p.base = opts.DeliverySubject
	}
	return p
}

// Subjects returns the subjects an event for agentID is published on, most specific first.
func (p *CommsPublisher) Subjects(agentID string) []string {
	return []string{commsutil.BuildDeliverySubject(p.base, agentID), p.base}
}

// PublishDelivery publishes event on every subject from Subjects. A failed subject does not
// stop the others; failures are joined.
func (p *CommsPublisher) PublishDelivery(_ context.Context, event *DeliveryEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event %s: %w", commsPublisherLogPrefix, event.DeliveryID, err)
	}

	var errs []error
	for _, subject := range p.Subjects(event.AgentID) {
		if err := p.nc.Publish(subject, data); err != nil {
			slog.Error(fmt.Sprintf("%s - publish %s on %s: %v", commsPublisherLogPrefix, event.DeliveryID, subject, err))
			errs = append(errs, fmt.Errorf("%s: %w", subject, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Debug(fmt.Sprintf("%s - delivery %s (%s) for agent %s published", commsPublisherLogPrefix, event.DeliveryID, event.Status, event.AgentID))
	return nil
}
