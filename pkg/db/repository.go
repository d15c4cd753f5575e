package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opspawn/agentkit/pkg/events"
)

const repoLogPrefix = "db:repository"

// Repository provides database access for the delivery log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertDelivery records one delivery outcome. Re-inserting the same delivery id is a no-op.
func (r *Repository) InsertDelivery(ctx context.Context, rec DeliveryRecord) error {
	slog.Debug(fmt.Sprintf("%s - InsertDelivery id=%s agent=%s status=%s", repoLogPrefix, rec.ID, rec.AgentID, rec.Status))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO dispatch_deliveries
		   (id, agent_id, callback_address, sender_id, message_type, status,
		    failure_kind, status_code, error, duration_ms, queued_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.AgentID, rec.CallbackAddress, rec.SenderID, rec.MessageKind, rec.Status,
		rec.FailureKind, rec.StatusCode, rec.Error, rec.DurationMs, rec.QueuedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("%s - insert delivery %s: %w", repoLogPrefix, rec.ID, err)
	}
	return nil
}

// PublishDelivery implements events.EventPublisher by persisting the event.
func (r *Repository) PublishDelivery(ctx context.Context, ev *events.DeliveryEvent) error {
	if ev == nil {
		return nil
	}
	return r.InsertDelivery(ctx, recordFromEvent(ev))
}

// ListDeliveries returns recorded deliveries, newest first.
func (r *Repository) ListDeliveries(ctx context.Context, params ListDeliveriesParams) ([]DeliveryRecord, error) {
	var (
		where []string
		args  []any
	)
	if params.AgentID != "" {
		args = append(args, params.AgentID)
		where = append(where, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, clampLimit(params.Limit))

	query := `SELECT id, agent_id, callback_address, sender_id, message_type, status,
	                 failure_kind, status_code, error, duration_ms, queued_at, completed_at
	          FROM dispatch_deliveries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY completed_at DESC, id LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - list deliveries: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	out := make([]DeliveryRecord, 0)
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list deliveries: %w", repoLogPrefix, err)
	}
	return out, nil
}

// GetDelivery finds a delivery by id. It returns nil, nil when none exists.
func (r *Repository) GetDelivery(ctx context.Context, id string) (*DeliveryRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, agent_id, callback_address, sender_id, message_type, status,
		        failure_kind, status_code, error, duration_ms, queued_at, completed_at
		 FROM dispatch_deliveries
		 WHERE id = $1`, id)
	rec, err := scanDelivery(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// CountDeliveries returns delivered and failed totals for an agent.
func (r *Repository) CountDeliveries(ctx context.Context, agentID string) (DeliveryCounts, error) {
	var c DeliveryCounts
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE status = 'delivered'),
		        count(*) FILTER (WHERE status = 'failed')
		 FROM dispatch_deliveries
		 WHERE agent_id = $1`, agentID).Scan(&c.Delivered, &c.Failed)
	if err != nil {
		return DeliveryCounts{}, fmt.Errorf("%s - count deliveries: %w", repoLogPrefix, err)
	}
	return c, nil
}

func scanDelivery(row pgx.Row) (*DeliveryRecord, error) {
	var rec DeliveryRecord
	err := row.Scan(&rec.ID, &rec.AgentID, &rec.CallbackAddress, &rec.SenderID, &rec.MessageKind, &rec.Status,
		&rec.FailureKind, &rec.StatusCode, &rec.Error, &rec.DurationMs, &rec.QueuedAt, &rec.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s - scan delivery: %w", repoLogPrefix, err)
	}
	return &rec, nil
}
