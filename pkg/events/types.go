// Package events defines deferred-delivery outcome events and the publishers that record them.
package events

import "time"

// DeliveryStatus is the terminal state of one deferred delivery attempt.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryEvent is emitted exactly once per scheduled forward.
type DeliveryEvent struct {
	DeliveryID      string         `json:"deliveryId"`
	AgentID         string         `json:"agentId"`
	CallbackAddress string         `json:"callbackAddress"`
	SenderID        string         `json:"senderId"`
	MessageKind     string         `json:"messageType"`
	Status          DeliveryStatus `json:"status"`
	FailureKind     string         `json:"failureKind,omitempty"`
	StatusCode      int            `json:"statusCode,omitempty"`
	Error           string         `json:"error,omitempty"`
	DurationMs      int64          `json:"durationMs"`
	QueuedAt        time.Time      `json:"queuedAt"`
	Timestamp       time.Time      `json:"timestamp"`
}
