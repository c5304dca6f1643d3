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

// VolumeFetcher synchronizes EBS volumes
type VolumeFetcher struct {
	fetcher
}

// NewVolumeFetcher creates a VolumeFetcher
func NewVolumeFetcher(deps Deps) *VolumeFetcher {
	return &VolumeFetcher{fetcher: newFetcher(inventory.KindVolume, deps)}
}

// Fetch implements Fetcher
func (f *VolumeFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		p := ec2.NewDescribeVolumesPaginator(s.conn.EC2, &ec2.DescribeVolumesInput{})
		return pages(ctx, f.Retry, "ec2:DescribeVolumes", p.HasMorePages,
			func(ctx context.Context) (*ec2.DescribeVolumesOutput, error) { return p.NextPage(ctx) },
			func(page *ec2.DescribeVolumesOutput) {
				for _, raw := range page.Volumes {
					f.store(ctx, s, raw, out)
				}
			})
	})
}

func (f *VolumeFetcher) store(ctx context.Context, s scope, raw ec2types.Volume, out *FetchOutcome) {
	out.Fetched++
	vol := mapVolume(raw)
	vol.AccountID = s.accountID

	zone := aws.ToString(raw.AvailabilityZone)
	if _, err := f.zone(ctx, zone); err != nil {
		f.skip(out, s, vol.ID, err)
		return
	}
	vol.AvailabilityZone = &zone

	if len(raw.Attachments) > 0 {
		vol.InstanceID = f.instanceRef(ctx, s, vol.ID, aws.ToString(raw.Attachments[0].InstanceId))
		if vol.InstanceID == nil {
			vol.AttachTime = nil
		}
	}

	if snap := aws.ToString(raw.SnapshotId); snap != "" {
		if err := f.Store.EnsureSnapshot(ctx, snap, s.accountID, s.region); err != nil {
			f.note(s, vol.ID, "created_from_snapshot", err)
		} else {
			vol.CreatedFromSnapshot = &snap
		}
	}

	created, err := f.Store.UpsertVolume(ctx, vol)
	if err != nil {
		f.skip(out, s, vol.ID, err)
		return
	}
	f.saved(out, created)
	f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
		Kind:             inventory.KindVolume,
		ID:               vol.ID,
		AccountID:        s.accountID,
		AvailabilityZone: zone,
	})
}
