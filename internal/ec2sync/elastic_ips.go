package ec2sync

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// ElasticIPFetcher synchronizes elastic IP addresses
type ElasticIPFetcher struct {
	fetcher
}

// NewElasticIPFetcher creates an ElasticIPFetcher
func NewElasticIPFetcher(deps Deps) *ElasticIPFetcher {
	return &ElasticIPFetcher{fetcher: newFetcher(inventory.KindElasticIP, deps)}
}

// Fetch implements Fetcher
func (f *ElasticIPFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		resp, err := providers.Call(ctx, f.Retry, "ec2:DescribeAddresses", func(ctx context.Context) (*ec2.DescribeAddressesOutput, error) {
			return s.conn.EC2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
		})
		if err != nil {
			return err
		}

		for _, raw := range resp.Addresses {
			out.Fetched++
			eip := mapElasticIP(raw)
			eip.AccountID = s.accountID
			eip.Region = s.region
			eip.InstanceID = f.instanceRef(ctx, s, eip.PublicIP, aws.ToString(raw.InstanceId))

			created, err := f.Store.UpsertElasticIP(ctx, eip)
			if err != nil {
				f.skip(out, s, eip.PublicIP, err)
				continue
			}
			f.saved(out, created)
			f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
				Kind:      inventory.KindElasticIP,
				ID:        eip.PublicIP,
				AccountID: s.accountID,
				Region:    s.region,
			})
		}
		return nil
	})
}
