package ec2sync

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// LoadBalancerFetcher synchronizes ELBv2 load balancers with their zones, security
// groups and instance targets
type LoadBalancerFetcher struct {
	fetcher
}

// NewLoadBalancerFetcher creates a LoadBalancerFetcher
func NewLoadBalancerFetcher(deps Deps) *LoadBalancerFetcher {
	return &LoadBalancerFetcher{fetcher: newFetcher(inventory.KindLoadBalancer, deps)}
}

// Fetch implements Fetcher
func (f *LoadBalancerFetcher) Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome {
	return f.run(ctx, pool, regions, accounts, func(ctx context.Context, s scope, out *FetchOutcome) error {
		var lbs []elbtypes.LoadBalancer
		p := elb.NewDescribeLoadBalancersPaginator(s.conn.ELB, &elb.DescribeLoadBalancersInput{})
		err := pages(ctx, f.Retry, "elbv2:DescribeLoadBalancers", p.HasMorePages,
			func(ctx context.Context) (*elb.DescribeLoadBalancersOutput, error) { return p.NextPage(ctx) },
			func(page *elb.DescribeLoadBalancersOutput) {
				lbs = append(lbs, page.LoadBalancers...)
			})
		if err != nil {
			return err
		}

		for _, raw := range lbs {
			f.store(ctx, s, raw, out)
		}
		return nil
	})
}

func (f *LoadBalancerFetcher) store(ctx context.Context, s scope, raw elbtypes.LoadBalancer, out *FetchOutcome) {
	out.Fetched++
	lb := mapLoadBalancer(raw)
	lb.AccountID = s.accountID
	lb.Region = s.region

	created, err := f.Store.UpsertLoadBalancer(ctx, lb)
	if err != nil {
		f.skip(out, s, lb.Name, err)
		return
	}
	f.saved(out, created)

	zones := f.knownZones(ctx, s, lb.Name, raw.AvailabilityZones)
	groups := f.ensureGroups(ctx, s, lb.Name, raw.SecurityGroups)
	instances := f.instanceTargets(ctx, s, lb)
	if err := f.Store.AddLoadBalancerLinks(ctx, lb.ID, instances, groups, zones); err != nil {
		f.note(s, lb.Name, "links", err)
	}

	tags, err := f.tags(ctx, s, lb.ARN)
	if err != nil {
		f.note(s, lb.Name, "tags", err)
		return
	}
	f.Tags.Attach(ctx, tags, inventory.ResourceRef{
		Kind:      inventory.KindLoadBalancer,
		ID:        lb.ID,
		AccountID: s.accountID,
		Region:    s.region,
	})
}

func (f *LoadBalancerFetcher) knownZones(ctx context.Context, s scope, name string, azs []elbtypes.AvailabilityZone) []string {
	var zones []string
	for _, az := range azs {
		zone := aws.ToString(az.ZoneName)
		if _, err := f.zone(ctx, zone); err != nil {
			f.note(s, name, "availability_zone", err)
			continue
		}
		zones = append(zones, zone)
	}
	return zones
}

func (f *LoadBalancerFetcher) ensureGroups(ctx context.Context, s scope, name string, ids []string) []string {
	var groups []string
	for _, id := range ids {
		sg := &inventory.SecurityGroup{ID: id, AccountID: s.accountID, Region: s.region}
		if err := f.Store.EnsureSecurityGroup(ctx, sg); err != nil {
			f.note(s, name, "security_group "+id, err)
			continue
		}
		groups = append(groups, id)
	}
	return groups
}

// instanceTargets lists the stored instances registered in the instance target
// groups of a load balancer
func (f *LoadBalancerFetcher) instanceTargets(ctx context.Context, s scope, lb *inventory.LoadBalancer) []string {
	if lb.ARN == "" {
		return nil
	}

	var groups []elbtypes.TargetGroup
	p := elb.NewDescribeTargetGroupsPaginator(s.conn.ELB, &elb.DescribeTargetGroupsInput{LoadBalancerArn: aws.String(lb.ARN)})
	err := pages(ctx, f.Retry, "elbv2:DescribeTargetGroups", p.HasMorePages,
		func(ctx context.Context) (*elb.DescribeTargetGroupsOutput, error) { return p.NextPage(ctx) },
		func(page *elb.DescribeTargetGroupsOutput) {
			groups = append(groups, page.TargetGroups...)
		})
	if err != nil {
		f.note(s, lb.Name, "instances", err)
		return nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, tg := range groups {
		if tg.TargetType != elbtypes.TargetTypeEnumInstance {
			continue
		}
		health, err := providers.Call(ctx, f.Retry, "elbv2:DescribeTargetHealth", func(ctx context.Context) (*elb.DescribeTargetHealthOutput, error) {
			return s.conn.ELB.DescribeTargetHealth(ctx, &elb.DescribeTargetHealthInput{TargetGroupArn: tg.TargetGroupArn})
		})
		if err != nil {
			f.note(s, lb.Name, "instances", err)
			continue
		}
		for _, d := range health.TargetHealthDescriptions {
			if d.Target == nil {
				continue
			}
			id := aws.ToString(d.Target.Id)
			if seen[id] {
				continue
			}
			seen[id] = true
			if ref := f.instanceRef(ctx, s, lb.Name, id); ref != nil {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (f *LoadBalancerFetcher) tags(ctx context.Context, s scope, arn string) (map[string]string, error) {
	if arn == "" {
		return nil, nil
	}
	resp, err := providers.Call(ctx, f.Retry, "elbv2:DescribeTags", func(ctx context.Context) (*elb.DescribeTagsOutput, error) {
		return s.conn.ELB.DescribeTags(ctx, &elb.DescribeTagsInput{ResourceArns: []string{arn}})
	})
	if err != nil {
		return nil, err
	}
	for _, d := range resp.TagDescriptions {
		if aws.ToString(d.ResourceArn) == arn {
			return elbTags(d.Tags), nil
		}
	}
	return nil, nil
}
