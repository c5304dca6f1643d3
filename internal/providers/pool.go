package providers

import (
	"context"
	"sync"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
)

type poolKey struct {
	accountID string
	region    string
}

// ClientPool lazily opens and caches one Connection per (account, region). A pool
// belongs to one sync run and is safe for use by that run's concurrent tasks.
type ClientPool struct {
	factory  Factory
	accounts []*account.Account
	byID     map[string]*account.Account

	mu    sync.Mutex
	conns map[poolKey]*Connection
}

// NewClientPool creates a pool over the accounts of one user. It fails with
// NoAccount when the user has none.
func NewClientPool(accounts []*account.Account, factory Factory) (*ClientPool, error) {
	if len(accounts) == 0 {
		return nil, errors.NoAccount()
	}

	byID := make(map[string]*account.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	return &ClientPool{
		factory:  factory,
		accounts: accounts,
		byID:     byID,
		conns:    make(map[poolKey]*Connection),
	}, nil
}

// Accounts returns the accounts of the pool in the order given at creation
func (p *ClientPool) Accounts() []*account.Account {
	return p.accounts
}

// Connection returns the cached connection for (accountID, region), opening it on
// first use
func (p *ClientPool) Connection(ctx context.Context, accountID, region string) (*Connection, error) {
	a, ok := p.byID[accountID]
	if !ok {
		return nil, errors.NotFound("Account")
	}

	key := poolKey{accountID: accountID, region: region}

	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[key]; ok {
		return conn, nil
	}

	conn, err := p.factory(ctx, a.ID, Credentials{AccessKeyID: a.AccessKeyID, SecretAccessKey: a.SecretAccessKey}, region)
	if err != nil {
		return nil, errors.UpstreamTransient("open connection", err)
	}
	metrics.RecordConnectionOpened()
	p.conns[key] = conn
	return conn, nil
}

// Size returns how many connections are open
func (p *ClientPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
