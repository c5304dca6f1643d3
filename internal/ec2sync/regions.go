package ec2sync

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// RegionDiscovery seeds the region and availability zone reference data
type RegionDiscovery struct {
	regions  inventory.RegionRepository
	sync     config.SyncConfig
	endpoint string
	retry    providers.RetryPolicy
	log      *logger.Logger
}

// NewRegionDiscovery creates a RegionDiscovery that lists regions through the
// endpoint region
func NewRegionDiscovery(regions inventory.RegionRepository, sync config.SyncConfig, endpoint string, log *logger.Logger) *RegionDiscovery {
	return &RegionDiscovery{
		regions:  regions,
		sync:     sync,
		endpoint: endpoint,
		retry:    providers.RetryPolicyFromConfig(sync),
		log:      log.Component("regions"),
	}
}

// Discover stores every enabled region outside the deny-list with its zones, using
// the first account of the pool. Nothing is stored unless the zones of every region
// were listed, so a failed discovery is repeated in full by the next sync.
func (d *RegionDiscovery) Discover(ctx context.Context, pool *providers.ClientPool) (int, error) {
	accounts := pool.Accounts()
	if len(accounts) == 0 {
		return 0, errors.NoAccount()
	}
	accountID := accounts[0].ID

	conn, err := pool.Connection(ctx, accountID, d.endpoint)
	if err != nil {
		return 0, err
	}
	resp, err := providers.Call(ctx, d.retry, "ec2:DescribeRegions", func(ctx context.Context) (*ec2.DescribeRegionsOutput, error) {
		return conn.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	})
	if err != nil {
		return 0, err
	}

	found := map[string][]string{}
	var errs []error
	for _, r := range resp.Regions {
		region := aws.ToString(r.RegionName)
		if region == "" || d.sync.IsDenied(region) {
			continue
		}

		zones, err := d.zones(ctx, pool, accountID, region)
		if err != nil {
			d.log.With("region", region).ErrorWithErr(err, "Failed to list availability zones")
			errs = append(errs, err)
			continue
		}
		found[region] = zones
	}
	if err := stderrors.Join(errs...); err != nil {
		return 0, err
	}

	names := make([]string, 0, len(found))
	for region := range found {
		names = append(names, region)
	}
	sort.Strings(names)
	for _, region := range names {
		if err := d.regions.SaveRegion(ctx, region, found[region]); err != nil {
			return 0, err
		}
	}

	d.log.Infof("Discovered %d regions", len(names))
	return len(names), nil
}

func (d *RegionDiscovery) zones(ctx context.Context, pool *providers.ClientPool, accountID, region string) ([]string, error) {
	conn, err := pool.Connection(ctx, accountID, region)
	if err != nil {
		return nil, err
	}
	resp, err := providers.Call(ctx, d.retry, "ec2:DescribeAvailabilityZones", func(ctx context.Context) (*ec2.DescribeAvailabilityZonesOutput, error) {
		return conn.EC2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	})
	if err != nil {
		return nil, err
	}

	zones := make([]string, 0, len(resp.AvailabilityZones))
	for _, z := range resp.AvailabilityZones {
		if name := aws.ToString(z.ZoneName); name != "" {
			zones = append(zones, name)
		}
	}
	sort.Strings(zones)
	return zones, nil
}

// Allowed returns the stored regions outside the deny-list
func (d *RegionDiscovery) Allowed(ctx context.Context) ([]string, error) {
	all, err := d.regions.ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if !d.sync.IsDenied(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
