package ec2sync

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// KeypairFetcher synchronizes key pairs
type KeypairFetcher struct {
	fetcher
}

// NewKeypairFetcher creates a KeypairFetcher
func NewKeypairFetcher(deps Deps) *KeypairFetcher {
	return &KeypairFetcher{fetcher: newFetcher(inventory.KindKeypair, deps)}
}

// Fetch implements Fetcher
func (f *KeypairFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		resp, err := providers.Call(ctx, f.Retry, "ec2:DescribeKeyPairs", func(ctx context.Context) (*ec2.DescribeKeyPairsOutput, error) {
			return s.conn.EC2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
		})
		if err != nil {
			return err
		}

		for _, raw := range resp.KeyPairs {
			out.Fetched++
			k := mapKeypair(raw)
			k.AccountID = s.accountID
			k.Region = s.region

			created, err := f.Store.UpsertKeypair(ctx, k)
			if err != nil {
				f.skip(out, s, k.KeyName, err)
				continue
			}
			f.saved(out, created)
			f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
				Kind:      inventory.KindKeypair,
				ID:        keypairResourceID(k),
				AccountID: s.accountID,
				Region:    s.region,
			})
		}
		return nil
	})
}

// keypairResourceID addresses a key pair in resource_tags; key names are only
// unique within an account and region
func keypairResourceID(k *inventory.Keypair) string {
	return k.AccountID + "/" + k.Region + "/" + k.KeyName
}
