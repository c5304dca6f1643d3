package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/ec2inventory/pkg/client"
)

// listFlags binds the common listing flags of a command
func listFlags(cmd *cobra.Command) *client.ListOptions {
	opts := &client.ListOptions{}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 50, "items per page")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort field, prefix with - for descending")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "filter by account id")
	cmd.Flags().StringVar(&opts.Region, "region", "", "filter by region")
	cmd.Flags().StringVar(&opts.State, "state", "", "filter by state, where the resource has one")
	return opts
}

// listCmd builds a listing command rendering each row with row
func listCmd[T any](use, short string, aliases []string,
	fetch func(context.Context, *client.ListOptions) (*client.Page[T], error),
	headers []string, row func(T) []string,
) *cobra.Command {
	var opts *client.ListOptions
	cmd := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := fetch(context.Background(), opts)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", use, err)
			}

			if getOutputFormat() != "table" {
				return printOutput(page)
			}

			t := NewTable(headers...)
			for _, item := range page.Data {
				t.AddRow(row(item)...)
			}
			t.Render()
			fmt.Printf("\nPage %d of %d (%d total)\n", page.Page, page.TotalPages, page.TotalItems)
			return nil
		},
	}
	opts = listFlags(cmd)
	return cmd
}

func newInventoryCmds() []*cobra.Command {
	inv := func() *client.InventoryService { return apiClient.Inventory() }

	return []*cobra.Command{
		listCmd("snapshots", "List EBS snapshots", []string{"snapshot"},
			func(ctx context.Context, o *client.ListOptions) (*client.Page[client.Snapshot], error) {
				return inv().Snapshots(ctx, o)
			},
			[]string{"ID", "ACCOUNT", "REGION", "SIZE", "STATUS", "VOLUME"},
			func(s client.Snapshot) []string {
				return []string{s.ID, s.AccountID, s.Region, sizeGiB(s.Size), s.Status, refValue(s.Links, "created_from_volume")}
			}),
		listCmd("amis", "List machine images", []string{"ami", "images"},
			func(ctx context.Context, o *client.ListOptions) (*client.Page[client.AMI], error) {
				return inv().AMIs(ctx, o)
			},
			[]string{"ID", "ACCOUNT", "REGION", "NAME", "ARCH", "STATE"},
			func(a client.AMI) []string {
				return []string{a.ID, a.AccountID, a.Region, truncate(a.Name, 40), a.Architecture, a.State}
			}),
		listCmd("keypairs", "List key pairs", []string{"keypair"},
			func(ctx context.Context, o *client.ListOptions) (*client.Page[client.Keypair], error) {
				return inv().Keypairs(ctx, o)
			},
			[]string{"NAME", "ACCOUNT", "REGION", "FINGERPRINT"},
			func(k client.Keypair) []string {
				return []string{k.KeyName, k.AccountID, k.Region, truncate(k.Fingerprint, 30)}
			}),
		listCmd("security-groups", "List security groups", []string{"sg"},
			func(ctx context.Context, o *client.ListOptions) (*client.Page[client.SecurityGroup], error) {
				return inv().SecurityGroups(ctx, o)
			},
			[]string{"ID", "NAME", "ACCOUNT", "REGION", "VPC"},
			func(sg client.SecurityGroup) []string {
				return []string{sg.ID, sg.Name, sg.AccountID, sg.Region, sg.VpcID}
			}),
		listCmd("elastic-ips", "List elastic IPs", []string{"eip"},
			func(ctx context.Context, o *client.ListOptions) (*client.Page[client.ElasticIP], error) {
				return inv().ElasticIPs(ctx, o)
			},
			[]string{"PUBLIC IP", "ACCOUNT", "REGION", "DOMAIN", "INSTANCE"},
			func(e client.ElasticIP) []string {
				return []string{e.PublicIP, e.AccountID, e.Region, e.Domain, refValue(e.Links, "instance")}
			}),
		listCmd("load-balancers", "List load balancers", []string{"elb"},
			func(ctx context.Context, o *client.ListOptions) (*client.Page[client.LoadBalancer], error) {
				return inv().LoadBalancers(ctx, o)
			},
			[]string{"NAME", "ACCOUNT", "REGION", "TYPE", "SCHEME", "INSTANCES"},
			func(lb client.LoadBalancer) []string {
				return []string{lb.Name, lb.AccountID, lb.Region, lb.Type, lb.Scheme, refValue(lb.Links, "instances")}
			}),
	}
}

// refValue renders a link of a row, empty when the link is unset
func refValue(links map[string]client.Ref, name string) string {
	ref, ok := links[name]
	if !ok {
		return ""
	}
	if ref.Kind == "collection" {
		return strings.Join(ref.Values, ",")
	}
	return ref.Value
}

func sizeGiB(size int32) string {
	return strconv.Itoa(int(size)) + " GiB"
}
