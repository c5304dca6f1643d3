package syncstate

import (
	"context"
	"time"
)

// Repository defines the interface for sync state data access
type Repository interface {
	// Get returns the state of a user, creating the default row on first access
	Get(ctx context.Context, userID int64) (*State, error)

	// SetResourcesInterval changes a user's resources refresh interval
	SetResourcesInterval(ctx context.Context, userID int64, interval time.Duration) error

	// AdvanceResources moves resources_last_updated from expected to to. It reports
	// false when another caller advanced it first.
	AdvanceResources(ctx context.Context, userID int64, expected, to time.Time) (bool, error)

	// ResetResources sets resources_last_updated back to the epoch
	ResetResources(ctx context.Context, userID int64) error

	// ClaimResources takes the in-progress claim unless a claim younger than lease exists
	ClaimResources(ctx context.Context, userID int64, now time.Time, lease time.Duration) (bool, error)

	// ReleaseResources drops the claim, advancing resources_last_updated to completedAt
	// when the run succeeded
	ReleaseResources(ctx context.Context, userID int64, succeeded bool, completedAt time.Time) error

	// MarkPricesUpdated sets prices_last_updated
	MarkPricesUpdated(ctx context.Context, userID int64, at time.Time) error
}
