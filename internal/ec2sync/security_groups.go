package ec2sync

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// SecurityGroupFetcher synchronizes security groups
type SecurityGroupFetcher struct {
	fetcher
}

// NewSecurityGroupFetcher creates a SecurityGroupFetcher
func NewSecurityGroupFetcher(deps Deps) *SecurityGroupFetcher {
	return &SecurityGroupFetcher{fetcher: newFetcher(inventory.KindSecurityGroup, deps)}
}

// Fetch implements Fetcher
func (f *SecurityGroupFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		p := ec2.NewDescribeSecurityGroupsPaginator(s.conn.EC2, &ec2.DescribeSecurityGroupsInput{})
		return pages(ctx, f.Retry, "ec2:DescribeSecurityGroups", p.HasMorePages,
			func(ctx context.Context) (*ec2.DescribeSecurityGroupsOutput, error) { return p.NextPage(ctx) },
			func(page *ec2.DescribeSecurityGroupsOutput) {
				for _, raw := range page.SecurityGroups {
					out.Fetched++
					sg := mapSecurityGroup(raw)
					sg.AccountID = s.accountID
					sg.Region = s.region

					created, err := f.Store.UpsertSecurityGroup(ctx, sg)
					if err != nil {
						f.skip(out, s, sg.ID, err)
						continue
					}
					f.saved(out, created)
					f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
						Kind:      inventory.KindSecurityGroup,
						ID:        sg.ID,
						AccountID: s.accountID,
						Region:    s.region,
					})
				}
			})
	})
}
