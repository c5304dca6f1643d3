package client

import (
	"context"
	"net/url"
	"strconv"
)

// InventoryService handles listing, action and cost API calls
type InventoryService struct {
	client *Client
}

func (o *ListOptions) query() string {
	if o == nil {
		return ""
	}
	query := url.Values{}
	if o.Page > 0 {
		query.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if o.Sort != "" {
		sort := o.Sort
		if o.Desc {
			sort = "-" + sort
		}
		query.Set("sort", sort)
	}
	if o.AccountID != "" {
		query.Set("account_id", o.AccountID)
	}
	if o.Region != "" {
		query.Set("region", o.Region)
	}
	if o.State != "" {
		query.Set("state", o.State)
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}

func list[T any](ctx context.Context, c *Client, path string, opts *ListOptions) (*Page[T], error) {
	var page Page[T]
	if err := c.doRequest(ctx, "GET", path+opts.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Instances lists instances
func (s *InventoryService) Instances(ctx context.Context, opts *ListOptions) (*Page[Instance], error) {
	return list[Instance](ctx, s.client, "/api/v1/instances", opts)
}

// Volumes lists volumes
func (s *InventoryService) Volumes(ctx context.Context, opts *ListOptions) (*Page[Volume], error) {
	return list[Volume](ctx, s.client, "/api/v1/volumes", opts)
}

// Snapshots lists snapshots
func (s *InventoryService) Snapshots(ctx context.Context, opts *ListOptions) (*Page[Snapshot], error) {
	return list[Snapshot](ctx, s.client, "/api/v1/snapshots", opts)
}

// AMIs lists images
func (s *InventoryService) AMIs(ctx context.Context, opts *ListOptions) (*Page[AMI], error) {
	return list[AMI](ctx, s.client, "/api/v1/amis", opts)
}

// Keypairs lists key pairs
func (s *InventoryService) Keypairs(ctx context.Context, opts *ListOptions) (*Page[Keypair], error) {
	return list[Keypair](ctx, s.client, "/api/v1/keypairs", opts)
}

// SecurityGroups lists security groups
func (s *InventoryService) SecurityGroups(ctx context.Context, opts *ListOptions) (*Page[SecurityGroup], error) {
	return list[SecurityGroup](ctx, s.client, "/api/v1/security-groups", opts)
}

// ElasticIPs lists elastic IPs
func (s *InventoryService) ElasticIPs(ctx context.Context, opts *ListOptions) (*Page[ElasticIP], error) {
	return list[ElasticIP](ctx, s.client, "/api/v1/elastic-ips", opts)
}

// LoadBalancers lists load balancers
func (s *InventoryService) LoadBalancers(ctx context.Context, opts *ListOptions) (*Page[LoadBalancer], error) {
	return list[LoadBalancer](ctx, s.client, "/api/v1/load-balancers", opts)
}

// StopInstance stops an instance
func (s *InventoryService) StopInstance(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "POST", "/api/v1/instances/"+url.PathEscape(id)+"/stop", nil, nil)
}

// TerminateInstance terminates an instance and reports the volumes deleted with it
func (s *InventoryService) TerminateInstance(ctx context.Context, id string) (*TerminateResult, error) {
	var res TerminateResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/instances/"+url.PathEscape(id)+"/terminate", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DetachVolume detaches a volume from its instance
func (s *InventoryService) DetachVolume(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "POST", "/api/v1/volumes/"+url.PathEscape(id)+"/detach", nil, nil)
}

// DeleteVolume deletes a volume
func (s *InventoryService) DeleteVolume(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "DELETE", "/api/v1/volumes/"+url.PathEscape(id), nil, nil)
}

// Costs reports the hourly, daily and monthly cost of the caller's instances
func (s *InventoryService) Costs(ctx context.Context, opts *ListOptions) (*CostReport, error) {
	var report CostReport
	if err := s.client.doRequest(ctx, "GET", "/api/v1/costs"+opts.query(), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
