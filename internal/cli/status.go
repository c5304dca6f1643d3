package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server and its database answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := apiClient.Health(context.Background())
			if err != nil {
				return fmt.Errorf("server is unhealthy: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(health)
			}
			fmt.Printf("Status: %s (database %s)\n", health.Status, health.Database)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show accounts and synchronization summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			accounts, accErr := apiClient.Accounts().List(ctx)
			status, syncErr := apiClient.Sync().Status(ctx)

			if getOutputFormat() != "table" {
				summary := map[string]interface{}{}
				if accErr == nil {
					summary["accounts"] = len(accounts)
				}
				if syncErr == nil {
					summary["sync"] = status
				}
				return printOutput(summary)
			}

			fmt.Println("EC2 Inventory")
			fmt.Println(strings.Repeat("=", 40))

			if accErr != nil {
				fmt.Printf("  Accounts:      (error: %v)\n", accErr)
			} else {
				fmt.Printf("  Accounts:      %d linked\n", len(accounts))
			}

			if syncErr != nil {
				fmt.Printf("  Sync:          (error: %v)\n", syncErr)
				return nil
			}
			fmt.Printf("  Resources:     %s%s\n", formatSyncTime(status.ResourcesLastUpdated), dueSuffix(status.ResourcesDue))
			fmt.Printf("  Prices:        %s%s\n", formatSyncTime(status.PricesLastUpdated), dueSuffix(status.PricesDue))
			fmt.Printf("  Interval:      %s\n", time.Duration(status.ResourcesIntervalSeconds)*time.Second)
			if status.InProgress {
				fmt.Printf("  In progress:   %d run(s)\n", len(status.Running))
			}
			return nil
		},
	}
}

func formatSyncTime(t time.Time) string {
	if t.Unix() <= 0 {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func dueSuffix(due bool) string {
	if due {
		return " (due)"
	}
	return ""
}
