package account

import "context"

// Service defines the interface for account management
type Service interface {
	// Add registers a key pair for a user. An existing account with the same key pair
	// is reused. The user's resources are marked stale so the next sync picks it up.
	Add(ctx context.Context, userID int64, name, accessKeyID, secretAccessKey string) (*Account, error)

	// Remove unlinks an account from a user and deletes it when no user references it
	Remove(ctx context.Context, userID int64, accountID string) error

	// List retrieves the accounts of a user
	List(ctx context.Context, userID int64) ([]*Account, error)
}
