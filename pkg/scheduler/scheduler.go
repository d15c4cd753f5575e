// Package scheduler delivers forwarded messages to agent callback addresses after the
// dispatcher has answered. Each job gets one attempt; its outcome is logged and published.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opspawn/agentkit/pkg/events"
	"github.com/opspawn/agentkit/pkg/message"
	"github.com/opspawn/agentkit/pkg/outbound"
)

const logPrefix = "scheduler:scheduler"

const (
	defaultWorkers   = 8
	defaultQueueSize = 256
	publishTimeout   = 5 * time.Second
)

var (
	// ErrQueueFull is returned by Schedule when the queue has no free slot.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("dispatch scheduler is closed")
)

// Poster performs the callback POST.
type Poster interface {
	PostJSON(ctx context.Context, url string, body any) (*outbound.Response, error)
}

// Job is one scheduled delivery.
type Job struct {
	ID              string
	AgentID         string
	CallbackAddress string
	Message         message.Message
	QueuedAt        time.Time
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Scheduled int64 `json:"scheduled"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Closed    bool  `json:"closed"`
}

// Scheduler owns a bounded queue drained by a fixed pool of workers.
type Scheduler struct {
	poster    Poster
	publisher events.EventPublisher
	workers   int
	queue     chan Job

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	done      chan struct{}

	scheduled atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// Params holds parameters for New.
type Params struct {
	Poster    Poster
	Publisher events.EventPublisher
	// Workers defaults to 8.
	Workers int
	// QueueSize defaults to 256.
	QueueSize int
}

// New creates a Scheduler. Call Start to begin delivering.
func New(params Params) *Scheduler {
	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	return &Scheduler{
		poster:    params.Poster,
		publisher: publisher,
		workers:   workers,
		queue:     make(chan Job, size),
		done:      make(chan struct{}),
	}
}

// Start launches the workers. It is safe to call more than once.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		var g errgroup.Group
		for i := 0; i < s.workers; i++ {
			g.Go(func() error {
				for job := range s.queue {
					s.deliver(job)
				}
				return nil
			})
		}
		go func() {
			g.Wait()
			close(s.done)
		}()
		slog.Info(fmt.Sprintf("%s - started %d workers (queue capacity %d)", logPrefix, s.workers, cap(s.queue)))
	})
}

// Schedule enqueues msg for delivery to callbackAddress without blocking.
func (s *Scheduler) Schedule(agentID, callbackAddress string, msg message.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	job := Job{
		ID:              uuid.NewString(),
		AgentID:         agentID,
		CallbackAddress: callbackAddress,
		Message:         msg,
		QueuedAt:        time.Now().UTC(),
	}
	select {
	case s.queue <- job:
		s.scheduled.Add(1)
		slog.Debug(fmt.Sprintf("%s - queued delivery %s for agent %s", logPrefix, job.ID, agentID))
		return nil
	default:
		slog.Warn(fmt.Sprintf("%s - queue full, rejecting delivery for agent %s", logPrefix, agentID))
		return ErrQueueFull
	}
}

// Close stops intake and waits for queued jobs to be delivered or for ctx to end.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	// drain whatever is queued even if Start was never called
	s.Start()

	select {
	case <-s.done:
		slog.Info(fmt.Sprintf("%s - drained (delivered=%d failed=%d)", logPrefix, s.delivered.Load(), s.failed.Load()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - close: %d deliveries still pending: %w", logPrefix, len(s.queue), ctx.Err())
	}
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	return Stats{
		Workers:   s.workers,
		Queued:    len(s.queue),
		Capacity:  cap(s.queue),
		Scheduled: s.scheduled.Load(),
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Closed:    closed,
	}
}

// deliver makes the single attempt for job. The caller's context is not used: a forward
// that was accepted is delivered even if the original request has gone away.
func (s *Scheduler) deliver(job Job) {
	event := &events.DeliveryEvent{
		DeliveryID:      job.ID,
		AgentID:         job.AgentID,
		CallbackAddress: job.CallbackAddress,
		SenderID:        job.Message.SenderID,
		MessageKind:     job.Message.Kind,
		QueuedAt:        job.QueuedAt,
	}

	start := time.Now()
	err := s.attempt(job)
	event.DurationMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()

	if err == nil {
		event.Status = events.DeliveryDelivered
		s.delivered.Add(1)
		slog.Info(fmt.Sprintf("%s - delivered %s to agent %s at %s in %dms",
			logPrefix, job.ID, job.AgentID, job.CallbackAddress, event.DurationMs))
	} else {
		event.Status = events.DeliveryFailed
		event.Error = err.Error()
		if ce, ok := outbound.AsCallError(err); ok {
			event.FailureKind = string(ce.Kind)
			event.StatusCode = ce.StatusCode
		} else {
			event.FailureKind = "internal"
		}
		s.failed.Add(1)
		slog.Warn(fmt.Sprintf("%s - delivery %s to agent %s failed (%s): %v",
			logPrefix, job.ID, job.AgentID, event.FailureKind, err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishDelivery(ctx, event); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to record delivery %s: %v", logPrefix, job.ID, err))
	}
}

func (s *Scheduler) attempt(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s - panic during delivery: %v", logPrefix, r)
		}
	}()
	if s.poster == nil {
		return fmt.Errorf("%s - no poster configured", logPrefix)
	}
	_, err = s.poster.PostJSON(context.Background(), job.CallbackAddress, job.Message)
	return err
}
