package providers

import (
	"context"
	"sync"
	"testing"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

func countingFactory(opened *int, mu *sync.Mutex) Factory {
	return func(ctx context.Context, accountID string, creds Credentials, region string) (*Connection, error) {
		mu.Lock()
		*opened++
		mu.Unlock()
		return &Connection{AccountID: accountID, Region: region}, nil
	}
}

func TestNewClientPool_NoAccount(t *testing.T) {
	_, err := NewClientPool(nil, NewAWSFactory())
	if !errors.IsNoAccount(err) {
		t.Errorf("NewClientPool() error = %v, want NoAccount", err)
	}
}

func TestClientPool_Connection(t *testing.T) {
	var opened int
	var mu sync.Mutex
	accounts := []*account.Account{
		{ID: "a1", AccessKeyID: "AKIA1", SecretAccessKey: "s1"},
		{ID: "a2", AccessKeyID: "AKIA2", SecretAccessKey: "s2"},
	}
	pool, err := NewClientPool(accounts, countingFactory(&opened, &mu))
	if err != nil {
		t.Fatalf("NewClientPool() error = %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			accountID := accounts[i%2].ID
			region := []string{"us-east-1", "eu-west-1"}[i%4/2]
			conn, err := pool.Connection(ctx, accountID, region)
			if err != nil {
				t.Errorf("Connection() error = %v", err)
				return
			}
			if conn.AccountID != accountID || conn.Region != region {
				t.Errorf("Connection() = %s/%s, want %s/%s", conn.AccountID, conn.Region, accountID, region)
			}
		}(i)
	}
	wg.Wait()

	if opened != 4 || pool.Size() != 4 {
		t.Errorf("opened %d connections (pool size %d), want 4", opened, pool.Size())
	}

	if _, err := pool.Connection(ctx, "unknown", "us-east-1"); !errors.IsNotFound(err) {
		t.Errorf("Connection() for unknown account error = %v, want NotFound", err)
	}
}
