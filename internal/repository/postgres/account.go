package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/secrets"
)

// AccountRepository implements account.Repository. Secret keys are sealed at rest.
type AccountRepository struct {
	db  *sql.DB
	box *secrets.Box
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB, box *secrets.Box) account.Repository {
	return &AccountRepository{db: db, box: box}
}

// Create stores a new account
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	sealed, err := r.box.Seal(a.SecretAccessKey)
	if err != nil {
		return errors.Internal("Failed to seal secret key", err)
	}

	query := `
		INSERT INTO accounts (id, name, access_key_id, secret_access_key, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Name, a.AccessKeyID, sealed, r.box.Fingerprint(a.SecretAccessKey), a.CreatedAt.Unix(),
	)
	if err != nil {
		return writeError("account", a.AccessKeyID, "Failed to create account", err)
	}
	return nil
}

// GetByID retrieves an account by id
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `
		SELECT id, name, access_key_id, secret_access_key, created_at
		FROM accounts WHERE id = $1
	`
	a, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Account")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get account", err)
	}
	return a, nil
}

// FindByKeys retrieves the account holding exactly this key pair
func (r *AccountRepository) FindByKeys(ctx context.Context, accessKeyID, secretAccessKey string) (*account.Account, error) {
	query := `
		SELECT id, name, access_key_id, secret_access_key, created_at
		FROM accounts WHERE access_key_id = $1 AND secret_hash = $2
	`
	a, err := r.scan(r.db.QueryRowContext(ctx, query, accessKeyID, r.box.Fingerprint(secretAccessKey)))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Account")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to find account", err)
	}
	return a, nil
}

// ListByUser retrieves the accounts linked to a user, oldest link first
func (r *AccountRepository) ListByUser(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `
		SELECT a.id, a.name, a.access_key_id, a.secret_access_key, a.created_at
		FROM accounts a
		JOIN user_accounts ua ON ua.account_id = a.id
		WHERE ua.user_id = $1
		ORDER BY ua.created_at ASC, a.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list accounts", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list accounts", err)
	}
	return accounts, nil
}

// ListUsers returns every user id linked to at least one account
func (r *AccountRepository) ListUsers(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM user_accounts ORDER BY user_id")
	if err != nil {
		return nil, errors.DatabaseError("Failed to list users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.DatabaseError("Failed to scan user id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Link associates an account with a user
func (r *AccountRepository) Link(ctx context.Context, userID int64, accountID string) error {
	query := `
		INSERT INTO user_accounts (user_id, account_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, account_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, accountID, time.Now().Unix()); err != nil {
		return writeError("account", accountID, "Failed to link account", err)
	}
	return nil
}

// Unlink removes the association between a user and an account
func (r *AccountRepository) Unlink(ctx context.Context, userID int64, accountID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM user_accounts WHERE user_id = $1 AND account_id = $2", userID, accountID)
	if err != nil {
		return errors.DatabaseError("Failed to unlink account", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound("Account")
	}
	return nil
}

// CountUsers returns how many users reference an account
func (r *AccountRepository) CountUsers(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_accounts WHERE account_id = $1", accountID).Scan(&count)
	if err != nil {
		return 0, errors.DatabaseError("Failed to count account users", err)
	}
	return count, nil
}

// Delete removes an account; owned resources, tags and links cascade
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return errors.DatabaseError("Failed to delete account", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.NotFound("Account")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *AccountRepository) scan(row rowScanner) (*account.Account, error) {
	var a account.Account
	var sealed string
	var createdAt int64
	if err := row.Scan(&a.ID, &a.Name, &a.AccessKeyID, &sealed, &createdAt); err != nil {
		return nil, err
	}
	secret, err := r.box.Open(sealed)
	if err != nil {
		return nil, err
	}
	a.SecretAccessKey = secret
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}
