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

// imageFilterChunk bounds the number of ids sent in one image-id filter
const imageFilterChunk = 100

// AMIFetcher synchronizes the images used by the account instances and the images
// owned by the account
type AMIFetcher struct {
	fetcher
}

// NewAMIFetcher creates an AMIFetcher
func NewAMIFetcher(deps Deps) *AMIFetcher {
	return &AMIFetcher{fetcher: newFetcher(inventory.KindAMI, deps)}
}

// Fetch implements Fetcher
func (f *AMIFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		used, err := f.usedImageIDs(ctx, s)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		handle := func(page *ec2.DescribeImagesOutput) {
			for _, raw := range page.Images {
				id := aws.ToString(raw.ImageId)
				if seen[id] {
					continue
				}
				seen[id] = true
				f.store(ctx, s, raw, out)
			}
		}

		for start := 0; start < len(used); start += imageFilterChunk {
			end := min(start+imageFilterChunk, len(used))
			in := &ec2.DescribeImagesInput{
				Filters: []ec2types.Filter{{Name: aws.String("image-id"), Values: used[start:end]}},
			}
			if err := f.describe(ctx, s, in, handle); err != nil {
				return err
			}
		}

		return f.describe(ctx, s, &ec2.DescribeImagesInput{Owners: []string{"self"}}, handle)
	})
}

func (f *AMIFetcher) describe(ctx context.Context, s scope, in *ec2.DescribeImagesInput, each func(*ec2.DescribeImagesOutput)) error {
	p := ec2.NewDescribeImagesPaginator(s.conn.EC2, in)
	return pages(ctx, f.Retry, "ec2:DescribeImages", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeImagesOutput, error) { return p.NextPage(ctx) },
		each)
}

// usedImageIDs lists the distinct images referenced by the instances of the scope
func (f *AMIFetcher) usedImageIDs(ctx context.Context, s scope) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)

	p := ec2.NewDescribeInstancesPaginator(s.conn.EC2, &ec2.DescribeInstancesInput{})
	err := pages(ctx, f.Retry, "ec2:DescribeInstances", p.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) { return p.NextPage(ctx) },
		func(page *ec2.DescribeInstancesOutput) {
			for _, r := range page.Reservations {
				for _, i := range r.Instances {
					id := aws.ToString(i.ImageId)
					if id != "" && !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
				}
			}
		})
	return ids, err
}

func (f *AMIFetcher) store(ctx context.Context, s scope, raw ec2types.Image, out *FetchOutcome) {
	out.Fetched++
	ami := mapAMI(raw)
	ami.AccountID = s.accountID
	ami.Region = s.region

	if snap := rootSnapshotID(raw); snap != "" {
		if err := f.Store.EnsureSnapshot(ctx, snap, s.accountID, s.region); err != nil {
			f.note(s, ami.ID, "created_from_snapshot", err)
		} else {
			ami.CreatedFromSnapshot = &snap
		}
	}

	created, err := f.Store.UpsertAMI(ctx, ami)
	if err != nil {
		f.skip(out, s, ami.ID, err)
		return
	}
	f.saved(out, created)
	f.Tags.Attach(ctx, ec2Tags(raw.Tags), inventory.ResourceRef{
		Kind:      inventory.KindAMI,
		ID:        ami.ID,
		AccountID: s.accountID,
		Region:    s.region,
	})
}
