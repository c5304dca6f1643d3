package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/syncstate"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

// SyncStateRepository implements syncstate.Repository. Timestamps are Unix seconds.
type SyncStateRepository struct {
	db *sql.DB
}

// NewSyncStateRepository creates a new sync state repository
func NewSyncStateRepository(db *sql.DB) syncstate.Repository {
	return &SyncStateRepository{db: db}
}

func (r *SyncStateRepository) ensure(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO user_sync_state (user_id, resources_last_updated, prices_last_updated, resources_interval_seconds)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, int64(syncstate.DefaultResourcesInterval/time.Second))
	if err != nil {
		return errors.DatabaseError("Failed to create sync state", err)
	}
	return nil
}

// Get returns the state of a user, creating the default row on first access
func (r *SyncStateRepository) Get(ctx context.Context, userID int64) (*syncstate.State, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT resources_last_updated, prices_last_updated, resources_interval_seconds, resources_claimed_at
		FROM user_sync_state WHERE user_id = $1
	`
	var resources, prices, interval int64
	var claimed sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&resources, &prices, &interval, &claimed)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Sync state")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get sync state", err)
	}

	return &syncstate.State{
		UserID:                  userID,
		ResourcesLastUpdated:    time.Unix(resources, 0).UTC(),
		PricesLastUpdated:       time.Unix(prices, 0).UTC(),
		ResourcesUpdateInterval: time.Duration(interval) * time.Second,
		ResourcesClaimedAt:      timeOrNil(claimed),
	}, nil
}

// SetResourcesInterval changes a user's resources refresh interval
func (r *SyncStateRepository) SetResourcesInterval(ctx context.Context, userID int64, interval time.Duration) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sync_state SET resources_interval_seconds = $1 WHERE user_id = $2",
		int64(interval/time.Second), userID)
	if err != nil {
		return errors.DatabaseError("Failed to update resources interval", err)
	}
	return nil
}

// AdvanceResources is a compare-and-set on resources_last_updated
func (r *SyncStateRepository) AdvanceResources(ctx context.Context, userID int64, expected, to time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_sync_state SET resources_last_updated = $1
		WHERE user_id = $2 AND resources_last_updated = $3
	`, to.Unix(), userID, expected.Unix())
	if err != nil {
		return false, errors.DatabaseError("Failed to advance resources timestamp", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to get rows affected", err)
	}
	return n == 1, nil
}

// ResetResources sets resources_last_updated back to the epoch
func (r *SyncStateRepository) ResetResources(ctx context.Context, userID int64) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sync_state SET resources_last_updated = 0 WHERE user_id = $1", userID)
	if err != nil {
		return errors.DatabaseError("Failed to reset resources timestamp", err)
	}
	return nil
}

// ClaimResources takes the in-progress claim unless a live one exists
func (r *SyncStateRepository) ClaimResources(ctx context.Context, userID int64, now time.Time, lease time.Duration) (bool, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_sync_state SET resources_claimed_at = $1
		WHERE user_id = $2 AND (resources_claimed_at IS NULL OR resources_claimed_at <= $3)
	`, now.Unix(), userID, now.Add(-lease).Unix())
	if err != nil {
		return false, errors.DatabaseError("Failed to claim resources sync", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to get rows affected", err)
	}
	return n == 1, nil
}

// ReleaseResources drops the claim and advances the timestamp on success
func (r *SyncStateRepository) ReleaseResources(ctx context.Context, userID int64, succeeded bool, completedAt time.Time) error {
	query := "UPDATE user_sync_state SET resources_claimed_at = NULL WHERE user_id = $1"
	args := []interface{}{userID}
	if succeeded {
		query = "UPDATE user_sync_state SET resources_claimed_at = NULL, resources_last_updated = $2 WHERE user_id = $1"
		args = append(args, completedAt.Unix())
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.DatabaseError("Failed to release resources sync", err)
	}
	return nil
}

// MarkPricesUpdated sets prices_last_updated
func (r *SyncStateRepository) MarkPricesUpdated(ctx context.Context, userID int64, at time.Time) error {
	if err := r.ensure(ctx, userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sync_state SET prices_last_updated = $1 WHERE user_id = $2", at.Unix(), userID)
	if err != nil {
		return errors.DatabaseError("Failed to update prices timestamp", err)
	}
	return nil
}
