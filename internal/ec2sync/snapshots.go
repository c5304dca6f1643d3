package ec2sync

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// SnapshotFetcher synchronizes the snapshots owned by the account
type SnapshotFetcher struct {
	fetcher
}

// NewSnapshotFetcher creates a SnapshotFetcher
func NewSnapshotFetcher(deps Deps) *SnapshotFetcher {
	return &SnapshotFetcher{fetcher: newFetcher(inventory.KindSnapshot, deps)}
}

// Fetch implements Fetcher
func (f *SnapshotFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		p := ec2.NewDescribeSnapshotsPaginator(s.conn.EC2, &ec2.DescribeSnapshotsInput{OwnerIds: []string{"self"}})
		return pages(ctx, f.Retry, "ec2:DescribeSnapshots", p.HasMorePages,
			func(ctx context.Context) (*ec2.DescribeSnapshotsOutput, error) { return p.NextPage(ctx) },
			func(page *ec2.DescribeSnapshotsOutput) {
				for _, raw := range page.Snapshots {
					f.store(ctx, s, raw, out)
				}
			})
	})
}

func (f *SnapshotFetcher) store(ctx context.Context, s scope, raw ec2types.Snapshot, out *FetchOutcome) {
	out.Fetched++
	snap := mapSnapshot(raw)
	snap.AccountID = s.accountID
	snap.Region = s.region

	if vol := aws.ToString(raw.VolumeId); vol != "" {
		if err := f.Store.EnsureVolume(ctx, vol, s.accountID); err != nil {
			f.note(s, snap.ID, "created_from_volume", err)
		} else {
			snap.CreatedFromVolume = &vol
		}
	}

	created, err := f.Store.UpsertSnapshot(ctx, snap)
	if err != nil {
		f.skip(out, s, snap.ID, err)
		return
	}
	f.saved(out, created)
	f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
		Kind:      inventory.KindSnapshot,
		ID:        snap.ID,
		AccountID: s.accountID,
		Region:    s.region,
	})
}
