package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/ec2inventory/pkg/client"
)

func newCostCmd() *cobra.Command {
	var (
		opts     client.ListOptions
		detailed bool
	)

	cmd := &cobra.Command{
		Use:     "costs",
		Aliases: []string{"cost"},
		Short:   "Show the running cost of instances per account",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := apiClient.Inventory().Costs(context.Background(), &opts)
			if err != nil {
				return fmt.Errorf("failed to get costs: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(report)
			}

			t := NewTable("ACCOUNT", "RUNNING", "HOURLY", "DAILY", "MONTHLY")
			for _, a := range report.Accounts {
				t.AddRow(a.AccountID, strconv.Itoa(a.Running), money(a.Hourly), money(a.Daily), money(a.Monthly))
			}
			t.AddRow("TOTAL", strconv.Itoa(report.Total.Running), money(report.Total.Hourly),
				money(report.Total.Daily), money(report.Total.Monthly))
			t.Render()
			fmt.Printf("\nMonthly figures assume %d days\n", report.DaysInMonth)

			if detailed && len(report.Instances) > 0 {
				fmt.Println()
				it := NewTable("INSTANCE", "ACCOUNT", "REGION", "TYPE", "PLATFORM", "STATE", "HOURLY", "CLASS")
				for _, i := range report.Instances {
					it.AddRow(i.InstanceID, i.AccountID, i.Region, i.InstanceType, i.EC2Platform,
						formatState(i.State), money(i.Hourly), formatPriceClass(i.PriceClass))
				}
				it.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AccountID, "account", "", "filter by account id")
	cmd.Flags().StringVar(&opts.Region, "region", "", "filter by region")
	cmd.Flags().BoolVar(&detailed, "instances", false, "also list every priced instance")

	return cmd
}

func money(v float64) string {
	return fmt.Sprintf("$%.3f", v)
}
