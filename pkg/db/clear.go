package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearDeliveries truncates the delivery log. Schema and migration history are preserved.
func ClearDeliveries(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing delivery log", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE dispatch_deliveries`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Delivery log cleared", clearLogPrefix))
	return nil
}

// PurgeDeliveriesBefore removes deliveries completed before cutoff and returns how many were removed.
func PurgeDeliveriesBefore(ctx context.Context, pool *pgxpool.Pool, cutoff time.Time) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM dispatch_deliveries WHERE completed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s - purge failed: %w", clearLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Purged %d deliveries completed before %s", clearLogPrefix, tag.RowsAffected(), cutoff.UTC().Format(time.RFC3339)))
	return tag.RowsAffected(), nil
}
