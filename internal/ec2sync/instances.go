package ec2sync

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// InstanceFetcher synchronizes instances with their security groups and the
// volumes of their block device mapping
type InstanceFetcher struct {
	fetcher
}

// NewInstanceFetcher creates an InstanceFetcher
func NewInstanceFetcher(deps Deps) *InstanceFetcher {
	return &InstanceFetcher{fetcher: newFetcher(inventory.KindInstance, deps)}
}

// Fetch implements Fetcher. Outcome.Created tells whether new instances need prices.
func (f *InstanceFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		p := ec2.NewDescribeInstancesPaginator(s.conn.EC2, &ec2.DescribeInstancesInput{})
		return pages(ctx, f.Retry, "ec2:DescribeInstances", p.HasMorePages,
			func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) { return p.NextPage(ctx) },
			func(page *ec2.DescribeInstancesOutput) {
				for _, r := range page.Reservations {
					for _, raw := range r.Instances {
						f.store(ctx, s, raw, out)
					}
				}
			})
	})
}

func (f *InstanceFetcher) store(ctx context.Context, s scope, raw ec2types.Instance, out *FetchOutcome) {
	out.Fetched++
	inst := mapInstance(raw)
	inst.AccountID = s.accountID

	var zone string
	if raw.Placement != nil {
		zone = aws.ToString(raw.Placement.AvailabilityZone)
	}
	if _, err := f.zone(ctx, zone); err != nil {
		f.skip(out, s, inst.ID, err)
		return
	}
	inst.AvailabilityZone = zone

	var amiName string
	if imageID := aws.ToString(raw.ImageId); imageID != "" {
		ami, err := f.Store.GetAMI(ctx, imageID)
		if errors.IsNotFound(err) {
			err = errors.MissingDependency(string(inventory.KindAMI), imageID)
		}
		if err != nil {
			f.note(s, inst.ID, "image", err)
		} else {
			inst.ImageID = &imageID
			amiName = ami.Name
		}
	}

	if keyName := aws.ToString(raw.KeyName); keyName != "" {
		ok, err := f.Store.KeypairExists(ctx, s.accountID, s.region, keyName)
		if err == nil && !ok {
			err = errors.MissingDependency(string(inventory.KindKeypair), keyName)
		}
		if err != nil {
			f.note(s, inst.ID, "key_pair", err)
		} else {
			inst.KeyName = &keyName
		}
	}

	inst.EC2Platform = ResolvePlatform(string(raw.Platform), aws.ToString(raw.PlatformDetails), amiName)

	created, err := f.Store.UpsertInstance(ctx, inst)
	if err != nil {
		f.skip(out, s, inst.ID, err)
		return
	}
	f.saved(out, created)

	f.linkSecurityGroups(ctx, s, inst.ID, raw.SecurityGroups)

	for _, a := range instanceAttachments(raw) {
		if err := f.Store.AttachVolume(ctx, s.accountID, a); err != nil {
			f.note(s, inst.ID, "volume "+a.VolumeID, err)
		}
	}

	f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
		Kind:             inventory.KindInstance,
		ID:               inst.ID,
		AccountID:        s.accountID,
		AvailabilityZone: zone,
	})
}

// linkSecurityGroups adds the instance groups, creating minimal rows for groups
// the security group fetch has not seen
func (f *InstanceFetcher) linkSecurityGroups(ctx context.Context, s scope, instanceID string, groups []ec2types.GroupIdentifier) {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		sg := &inventory.SecurityGroup{
			ID:        aws.ToString(g.GroupId),
			Name:      aws.ToString(g.GroupName),
			AccountID: s.accountID,
			Region:    s.region,
		}
		if sg.ID == "" {
			continue
		}
		if err := f.Store.EnsureSecurityGroup(ctx, sg); err != nil {
			f.note(s, instanceID, "security_group "+sg.ID, err)
			continue
		}
		ids = append(ids, sg.ID)
	}
	if len(ids) == 0 {
		return
	}
	if err := f.Store.AddInstanceSecurityGroups(ctx, instanceID, ids); err != nil {
		f.note(s, instanceID, "security_groups", err)
	}
}
