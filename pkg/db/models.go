package db

import (
	"time"

	"github.com/opspawn/agentkit/pkg/events"
)

// DeliveryRecord represents a row in the dispatch_deliveries table.
type DeliveryRecord struct {
	ID              string    `json:"deliveryId"`
	AgentID         string    `json:"agentId"`
	CallbackAddress string    `json:"callbackAddress"`
	SenderID        string    `json:"senderId"`
	MessageKind     string    `json:"messageType"`
	Status          string    `json:"status"`
	FailureKind     *string   `json:"failureKind,omitempty"`
	StatusCode      *int      `json:"statusCode,omitempty"`
	Error           *string   `json:"error,omitempty"`
	DurationMs      int64     `json:"durationMs"`
	QueuedAt        time.Time `json:"queuedAt"`
	CompletedAt     time.Time `json:"completedAt"`
}

// ListDeliveriesParams filters ListDeliveries. Zero values mean no filter; Limit is clamped
// to [1, MaxListLimit] with DefaultListLimit when unset.
type ListDeliveriesParams struct {
	AgentID string
	Status  string
	Limit   int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DeliveryCounts summarizes delivery outcomes for one agent.
type DeliveryCounts struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// recordFromEvent maps an outcome event to its row, leaving optional columns NULL when empty.
func recordFromEvent(ev *events.DeliveryEvent) DeliveryRecord {
	rec := DeliveryRecord{
		ID:              ev.DeliveryID,
		AgentID:         ev.AgentID,
		CallbackAddress: ev.CallbackAddress,
		SenderID:        ev.SenderID,
		MessageKind:     ev.MessageKind,
		Status:          string(ev.Status),
		DurationMs:      ev.DurationMs,
		QueuedAt:        ev.QueuedAt.UTC(),
		CompletedAt:     ev.Timestamp.UTC(),
	}
	if ev.FailureKind != "" {
		fk := ev.FailureKind
		rec.FailureKind = &fk
	}
	if ev.StatusCode != 0 {
		sc := ev.StatusCode
		rec.StatusCode = &sc
	}
	if ev.Error != "" {
		e := ev.Error
		rec.Error = &e
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	if rec.QueuedAt.IsZero() {
		rec.QueuedAt = rec.CompletedAt
	}
	return rec
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
