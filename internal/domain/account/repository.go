package account

import "context"

// Repository defines the interface for account data access
type Repository interface {
	// Create stores a new account
	Create(ctx context.Context, a *Account) error

	// GetByID retrieves an account by id
	GetByID(ctx context.Context, id string) (*Account, error)

	// FindByKeys retrieves the account holding exactly this key pair, or NotFound
	FindByKeys(ctx context.Context, accessKeyID, secretAccessKey string) (*Account, error)

	// ListByUser retrieves the accounts linked to a user, oldest first
	ListByUser(ctx context.Context, userID int64) ([]*Account, error)

	// ListUsers returns every user id linked to at least one account
	ListUsers(ctx context.Context) ([]int64, error)

	// Link associates an account with a user; linking twice is a no-op
	Link(ctx context.Context, userID int64, accountID string) error

	// Unlink removes the association between a user and an account
	Unlink(ctx context.Context, userID int64, accountID string) error

	// CountUsers returns how many users reference an account
	CountUsers(ctx context.Context, accountID string) (int, error)

	// Delete removes an account and, by cascade, every resource it owns
	Delete(ctx context.Context, id string) error
}
