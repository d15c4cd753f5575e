package events

import (
	"context"
	"errors"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishDelivery(context.Background(), &DeliveryEvent{AgentID: "a1", Status: DeliveryDelivered})
	if err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *DeliveryEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *DeliveryEvent) error {
		captured = event
		return nil
	})

	event := &DeliveryEvent{
		DeliveryID:  "d-1",
		AgentID:     "a1",
		Status:      DeliveryFailed,
		FailureKind: "timeout",
	}
	if err := pub.PublishDelivery(context.Background(), event); err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}
	if captured == nil {
		t.Fatal("events:publisher_test - expected callback to be called")
	}
	if captured.FailureKind != "timeout" {
		t.Errorf("events:publisher_test - expected failure kind timeout, got %s", captured.FailureKind)
	}
}

func TestCallbackPublisher_Error(t *testing.T) {
	pub := NewCallbackPublisher(func(_ context.Context, _ *DeliveryEvent) error {
		return errors.New("sink down")
	})
	if err := pub.PublishDelivery(context.Background(), &DeliveryEvent{}); err == nil {
		t.Error("events:publisher_test - expected error to propagate")
	}
}

func TestMultiPublisher(t *testing.T) {
	var calls []string
	ok := NewCallbackPublisher(func(_ context.Context, _ *DeliveryEvent) error {
		calls = append(calls, "ok")
		return nil
	})
	failing := NewCallbackPublisher(func(_ context.Context, _ *DeliveryEvent) error {
		calls = append(calls, "failing")
		return errors.New("boom")
	})

	multi := NewMultiPublisher(failing, nil, ok)
	if multi.Len() != 2 {
		t.Errorf("events:publisher_test - nil publisher should be skipped, Len() = %d", multi.Len())
	}

	err := multi.PublishDelivery(context.Background(), &DeliveryEvent{AgentID: "a1"})
	if err == nil {
		t.Error("events:publisher_test - expected joined error")
	}
	if len(calls) != 2 || calls[0] != "failing" || calls[1] != "ok" {
		t.Errorf("events:publisher_test - every publisher must be called in order, got %v", calls)
	}

	if err := NewMultiPublisher().PublishDelivery(context.Background(), &DeliveryEvent{}); err != nil {
		t.Errorf("events:publisher_test - empty multi publisher should succeed, got %v", err)
	}
}

func TestCommsPublisher_Subjects(t *testing.T) {
	tests := []struct {
		name    string
		opts    *CommsPublisherOpts
		agentID string
		want    []string
	}{
		{"defaults", nil, "a1", []string{"agentkit.delivery.a1", "agentkit.delivery"}},
		{"custom base", &CommsPublisherOpts{DeliverySubject: "ops.out"}, "a1", []string{"ops.out.a1", "ops.out"}},
		{"unsafe id", nil, "a.b*c", []string{"agentkit.delivery.a_b_c", "agentkit.delivery"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCommsPublisher(nil, tt.opts).Subjects(tt.agentID)
			if len(got) != len(tt.want) {
				t.Fatalf("events:publisher_test - Subjects = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("events:publisher_test - Subjects[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
