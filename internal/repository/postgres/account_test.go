package postgres

import (
	"context"
	"testing"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/testutil"
)

func TestAccountRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	ctx := context.Background()
	repo := NewAccountRepository(db, testutil.NewTestBox())

	acc := &account.Account{ID: "acc-1", Name: "prod", AccessKeyID: "AKIAPROD0000000001", SecretAccessKey: "prod-secret-key-0001"}
	if err := repo.Create(ctx, acc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name      string
		accessKey string
		secret    string
		wantFound bool
	}{
		{name: "exact key pair", accessKey: "AKIAPROD0000000001", secret: "prod-secret-key-0001", wantFound: true},
		{name: "same access key, other secret", accessKey: "AKIAPROD0000000001", secret: "other-secret-key-01"},
		{name: "unknown access key", accessKey: "AKIAOTHER000000001", secret: "prod-secret-key-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindByKeys(ctx, tt.accessKey, tt.secret)
			if !tt.wantFound {
				if !errors.IsNotFound(err) {
					t.Errorf("FindByKeys() error = %v, want NotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindByKeys() error = %v", err)
			}
			if got.ID != acc.ID || got.SecretAccessKey != acc.SecretAccessKey {
				t.Errorf("FindByKeys() = %+v, want %s with its secret opened", got, acc.ID)
			}
		})
	}

	dup := &account.Account{ID: "acc-2", Name: "again", AccessKeyID: acc.AccessKeyID, SecretAccessKey: acc.SecretAccessKey}
	if err := repo.Create(ctx, dup); !errors.IsUniquenessConflict(err) {
		t.Errorf("Create() duplicate key pair error = %v, want uniqueness conflict", err)
	}
}

func TestAccountRepository_SecretSealedAtRest(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	ctx := context.Background()
	repo := NewAccountRepository(db, testutil.NewTestBox())
	if err := repo.Create(ctx, &account.Account{ID: "acc-1", Name: "a", AccessKeyID: "AKIAPROD0000000001", SecretAccessKey: "plain-secret-value"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var stored string
	if err := db.QueryRowContext(ctx, "SELECT secret_access_key FROM accounts WHERE id = $1", "acc-1").Scan(&stored); err != nil {
		t.Fatalf("select secret: %v", err)
	}
	if stored == "plain-secret-value" {
		t.Error("secret key is stored in clear text")
	}
}

func TestAccountRepository_LinkUnlinkDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	ctx := context.Background()
	repo := NewAccountRepository(db, testutil.NewTestBox())
	testutil.SeedAccount(t, db, 1, "shared", "AKIASHARED00000001")

	if err := repo.Link(ctx, 2, "shared"); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if err := repo.Link(ctx, 2, "shared"); err != nil {
		t.Errorf("Link() twice error = %v, want no-op", err)
	}
	if err := repo.Link(ctx, 3, "missing"); !errors.IsMissingDependency(err) {
		t.Errorf("Link() unknown account error = %v, want missing dependency", err)
	}

	count, err := repo.CountUsers(ctx, "shared")
	if err != nil || count != 2 {
		t.Fatalf("CountUsers() = %d, %v, want 2", count, err)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil || len(users) != 2 || users[0] != 1 || users[1] != 2 {
		t.Errorf("ListUsers() = %v, %v, want [1 2]", users, err)
	}

	if err := repo.Unlink(ctx, 1, "shared"); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
	if err := repo.Unlink(ctx, 1, "shared"); !errors.IsNotFound(err) {
		t.Errorf("Unlink() twice error = %v, want NotFound", err)
	}
	accounts, err := repo.ListByUser(ctx, 1)
	if err != nil || len(accounts) != 0 {
		t.Errorf("ListByUser(1) = %v, %v, want none", accounts, err)
	}

	if err := repo.Delete(ctx, "shared"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if count, _ := repo.CountUsers(ctx, "shared"); count != 0 {
		t.Errorf("links survived account deletion: %d", count)
	}
	if err := repo.Delete(ctx, "shared"); !errors.IsNotFound(err) {
		t.Errorf("Delete() twice error = %v, want NotFound", err)
	}
}
