package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/pricing"

	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// FakeCloud is an in-memory AWS with one FakeEC2 and FakeELB per region. Every
// account sees the same resources.
type FakeCloud struct {
	mu      sync.Mutex
	ec2     map[string]*FakeEC2
	elb     map[string]*FakeELB
	calls   []string
	opened  int
	Pricing *FakePricing
}

// NewFakeCloud creates an empty FakeCloud
func NewFakeCloud() *FakeCloud {
	return &FakeCloud{
		ec2:     make(map[string]*FakeEC2),
		elb:     make(map[string]*FakeELB),
		Pricing: &FakePricing{},
	}
}

func (c *FakeCloud) record(op string) {
	c.mu.Lock()
	c.calls = append(c.calls, op)
	c.mu.Unlock()
}

// EC2 returns the EC2 fake of a region, creating it on first use
func (c *FakeCloud) EC2(region string) *FakeEC2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.ec2[region]; ok {
		return f
	}
	f := &FakeEC2{cloud: c, region: region, Errors: make(map[string]error)}
	c.ec2[region] = f
	return f
}

// ELB returns the ELBv2 fake of a region, creating it on first use
func (c *FakeCloud) ELB(region string) *FakeELB {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.elb[region]; ok {
		return f
	}
	f := &FakeELB{cloud: c, TargetHealth: make(map[string][]string), Tags: make(map[string]map[string]string)}
	c.elb[region] = f
	return f
}

// Calls returns the operations invoked so far, in order
func (c *FakeCloud) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// ResetCalls forgets the recorded operations
func (c *FakeCloud) ResetCalls() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}

// Opened returns how many connections the factory created
func (c *FakeCloud) Opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Factory returns a connection factory backed by the fakes
func (c *FakeCloud) Factory() providers.Factory {
	return func(ctx context.Context, accountID string, creds providers.Credentials, region string) (*providers.Connection, error) {
		c.mu.Lock()
		c.opened++
		c.mu.Unlock()
		return &providers.Connection{AccountID: accountID, Region: region, EC2: c.EC2(region), ELB: c.ELB(region)}, nil
	}
}

// PricingFactory returns a pricing client factory backed by c.Pricing
func (c *FakeCloud) PricingFactory() providers.PricingFactory {
	return func(ctx context.Context, creds providers.Credentials) (providers.PricingAPI, error) {
		return c.Pricing, nil
	}
}

// FakeEC2 implements providers.EC2API over in-memory slices. Errors maps an
// operation name to the error it returns.
type FakeEC2 struct {
	cloud  *FakeCloud
	region string

	mu             sync.Mutex
	Regions        []string
	Zones          []string
	Instances      []ec2types.Instance
	Volumes        []ec2types.Volume
	Snapshots      []ec2types.Snapshot
	Images         []ec2types.Image
	KeyPairs       []ec2types.KeyPairInfo
	SecurityGroups []ec2types.SecurityGroup
	Addresses      []ec2types.Address
	Errors         map[string]error

	Stopped    []string
	Terminated []string
	Detached   []string
	Deleted    []string
}

func (f *FakeEC2) call(op string) error {
	f.cloud.record(op)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errors[op]
}

// Fail makes an operation return err
func (f *FakeEC2) Fail(op string, err error) {
	f.mu.Lock()
	f.Errors[op] = err
	f.mu.Unlock()
}

func (f *FakeEC2) DescribeRegions(ctx context.Context, in *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if err := f.call("DescribeRegions"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeRegionsOutput{}
	for _, r := range f.Regions {
		out.Regions = append(out.Regions, ec2types.Region{RegionName: aws.String(r)})
	}
	return out, nil
}

func (f *FakeEC2) DescribeAvailabilityZones(ctx context.Context, in *ec2.DescribeAvailabilityZonesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	if err := f.call("DescribeAvailabilityZones"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeAvailabilityZonesOutput{}
	for _, z := range f.Zones {
		out.AvailabilityZones = append(out.AvailabilityZones, ec2types.AvailabilityZone{
			ZoneName:   aws.String(z),
			RegionName: aws.String(f.region),
		})
	}
	return out, nil
}

func (f *FakeEC2) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if err := f.call("DescribeInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: append([]ec2types.Instance(nil), f.Instances...)}},
	}, nil
}

func (f *FakeEC2) DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	if err := f.call("DescribeVolumes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.DescribeVolumesOutput{Volumes: append([]ec2types.Volume(nil), f.Volumes...)}, nil
}

func (f *FakeEC2) DescribeSnapshots(ctx context.Context, in *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	if err := f.call("DescribeSnapshots"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.DescribeSnapshotsOutput{Snapshots: append([]ec2types.Snapshot(nil), f.Snapshots...)}, nil
}

// DescribeImages honours the image-id filter and the "self" owner. Images owned
// by "self" are those with OwnerId "self".
func (f *FakeEC2) DescribeImages(ctx context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	if err := f.call("DescribeImages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make(map[string]bool)
	for _, flt := range in.Filters {
		if aws.ToString(flt.Name) == "image-id" {
			for _, v := range flt.Values {
				ids[v] = true
			}
		}
	}
	self := false
	for _, o := range in.Owners {
		self = self || o == "self"
	}

	out := &ec2.DescribeImagesOutput{}
	for _, img := range f.Images {
		if ids[aws.ToString(img.ImageId)] || (self && aws.ToString(img.OwnerId) == "self") {
			out.Images = append(out.Images, img)
		}
	}
	return out, nil
}

func (f *FakeEC2) DescribeKeyPairs(ctx context.Context, in *ec2.DescribeKeyPairsInput, _ ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	if err := f.call("DescribeKeyPairs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.DescribeKeyPairsOutput{KeyPairs: append([]ec2types.KeyPairInfo(nil), f.KeyPairs...)}, nil
}

func (f *FakeEC2) DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	if err := f.call("DescribeSecurityGroups"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: append([]ec2types.SecurityGroup(nil), f.SecurityGroups...)}, nil
}

func (f *FakeEC2) DescribeAddresses(ctx context.Context, in *ec2.DescribeAddressesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error) {
	if err := f.call("DescribeAddresses"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ec2.DescribeAddressesOutput{Addresses: append([]ec2types.Address(nil), f.Addresses...)}, nil
}

func (f *FakeEC2) StopInstances(ctx context.Context, in *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	if err := f.call("StopInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped = append(f.Stopped, in.InstanceIds...)
	return &ec2.StopInstancesOutput{}, nil
}

func (f *FakeEC2) TerminateInstances(ctx context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	if err := f.call("TerminateInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Terminated = append(f.Terminated, in.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *FakeEC2) DetachVolume(ctx context.Context, in *ec2.DetachVolumeInput, _ ...func(*ec2.Options)) (*ec2.DetachVolumeOutput, error) {
	if err := f.call("DetachVolume"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Detached = append(f.Detached, aws.ToString(in.VolumeId))
	return &ec2.DetachVolumeOutput{}, nil
}

func (f *FakeEC2) DeleteVolume(ctx context.Context, in *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
	if err := f.call("DeleteVolume"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, aws.ToString(in.VolumeId))
	return &ec2.DeleteVolumeOutput{}, nil
}

// FakeELB implements providers.ELBAPI. TargetHealth maps a target group ARN to
// its instance ids and Tags maps a load balancer ARN to its tags.
type FakeELB struct {
	cloud *FakeCloud

	LoadBalancers []elbtypes.LoadBalancer
	TargetGroups  []elbtypes.TargetGroup
	TargetHealth  map[string][]string
	Tags          map[string]map[string]string
}

func (f *FakeELB) DescribeLoadBalancers(ctx context.Context, in *elb.DescribeLoadBalancersInput, _ ...func(*elb.Options)) (*elb.DescribeLoadBalancersOutput, error) {
	f.cloud.record("DescribeLoadBalancers")
	return &elb.DescribeLoadBalancersOutput{LoadBalancers: f.LoadBalancers}, nil
}

func (f *FakeELB) DescribeTargetGroups(ctx context.Context, in *elb.DescribeTargetGroupsInput, _ ...func(*elb.Options)) (*elb.DescribeTargetGroupsOutput, error) {
	f.cloud.record("DescribeTargetGroups")
	out := &elb.DescribeTargetGroupsOutput{}
	for _, tg := range f.TargetGroups {
		for _, arn := range tg.LoadBalancerArns {
			if arn == aws.ToString(in.LoadBalancerArn) {
				out.TargetGroups = append(out.TargetGroups, tg)
				break
			}
		}
	}
	return out, nil
}

func (f *FakeELB) DescribeTargetHealth(ctx context.Context, in *elb.DescribeTargetHealthInput, _ ...func(*elb.Options)) (*elb.DescribeTargetHealthOutput, error) {
	f.cloud.record("DescribeTargetHealth")
	out := &elb.DescribeTargetHealthOutput{}
	for _, id := range f.TargetHealth[aws.ToString(in.TargetGroupArn)] {
		out.TargetHealthDescriptions = append(out.TargetHealthDescriptions, elbtypes.TargetHealthDescription{
			Target: &elbtypes.TargetDescription{Id: aws.String(id)},
		})
	}
	return out, nil
}

func (f *FakeELB) DescribeTags(ctx context.Context, in *elb.DescribeTagsInput, _ ...func(*elb.Options)) (*elb.DescribeTagsOutput, error) {
	f.cloud.record("DescribeTags")
	out := &elb.DescribeTagsOutput{}
	for _, arn := range in.ResourceArns {
		desc := elbtypes.TagDescription{ResourceArn: aws.String(arn)}
		keys := make([]string, 0, len(f.Tags[arn]))
		for k := range f.Tags[arn] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			desc.Tags = append(desc.Tags, elbtypes.Tag{Key: aws.String(k), Value: aws.String(f.Tags[arn][k])})
		}
		out.TagDescriptions = append(out.TagDescriptions, desc)
	}
	return out, nil
}

// FakePricing serves PriceList in a single page
type FakePricing struct {
	PriceList []string
	Err       error
	Calls     int
}

func (f *FakePricing) GetProducts(ctx context.Context, in *pricing.GetProductsInput, _ ...func(*pricing.Options)) (*pricing.GetProductsOutput, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return &pricing.GetProductsOutput{PriceList: f.PriceList}, nil
}

// PriceEntry renders a Price List product entry with one on-demand USD price
func PriceEntry(instanceType, os, software, regionCode string, hourly float64) string {
	return fmt.Sprintf(`{
		"product": {
			"productFamily": "Compute Instance",
			"attributes": {
				"instanceType": %q,
				"operatingSystem": %q,
				"preInstalledSw": %q,
				"regionCode": %q,
				"licenseModel": "No License required"
			}
		},
		"terms": {
			"OnDemand": {
				"T1": {"priceDimensions": {"D1": {"unit": "Hrs", "pricePerUnit": {"USD": "%.4f"}}}}
			}
		}
	}`, instanceType, os, software, regionCode, hourly)
}
