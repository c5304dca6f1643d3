package testutil

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/secrets"
	"github.com/pratik-mahalle/ec2inventory/migrations"
)

// NewTestDB creates an in-memory SQLite database with the full schema applied
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", name, err)
		}
		if _, err := db.ExecContext(context.Background(), string(content)); err != nil {
			t.Fatalf("Failed to apply migration %s: %v", name, err)
		}
	}

	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// NewTestBox returns a secret box with a fixed test key
func NewTestBox() *secrets.Box {
	return secrets.NewBox("test-encryption-key")
}

// SeedAccount inserts an account row and links it to userID. The stored secret is
// sealed with NewTestBox.
func SeedAccount(t *testing.T, db *sql.DB, userID int64, id, accessKeyID string) {
	t.Helper()

	box := NewTestBox()
	sealed, err := box.Seal("secret-" + id)
	if err != nil {
		t.Fatalf("Failed to seal secret: %v", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, access_key_id, secret_access_key, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, id, "account "+id, accessKeyID, sealed, box.Fingerprint("secret-"+id)); err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO user_accounts (user_id, account_id, created_at) VALUES ($1, $2, 0)",
		userID, id); err != nil {
		t.Fatalf("Failed to link account: %v", err)
	}
}

// SeedRegion inserts a region and its zones
func SeedRegion(t *testing.T, db *sql.DB, region string, zones ...string) {
	t.Helper()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx,
		"INSERT INTO regions (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", region); err != nil {
		t.Fatalf("Failed to seed region: %v", err)
	}
	for _, zone := range zones {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO availability_zones (name, region) VALUES ($1, $2)", zone, region); err != nil {
			t.Fatalf("Failed to seed zone: %v", err)
		}
	}
}
