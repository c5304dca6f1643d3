package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/ec2inventory/pkg/client"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger and inspect synchronization",
	}

	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newSyncTriggerCmd("ensure", "Start whatever refresh is due", (*client.SyncService).Ensure))
	cmd.AddCommand(newSyncTriggerCmd("resources", "Force a resources refresh", (*client.SyncService).Resources))
	cmd.AddCommand(newSyncTriggerCmd("prices", "Force a price refresh", (*client.SyncService).Prices))
	cmd.AddCommand(newSyncIntervalCmd())

	return cmd
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync state and running syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := apiClient.Sync().Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get sync status: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(status)
			}

			t := NewTable("SCOPE", "LAST UPDATED", "INTERVAL", "DUE")
			t.AddRow("resources", formatSyncTime(status.ResourcesLastUpdated),
				(time.Duration(status.ResourcesIntervalSeconds) * time.Second).String(), strconv.FormatBool(status.ResourcesDue))
			t.AddRow("prices", formatSyncTime(status.PricesLastUpdated),
				(time.Duration(status.PricesIntervalSeconds) * time.Second).String(), strconv.FormatBool(status.PricesDue))
			t.Render()

			for _, run := range status.Running {
				fmt.Println()
				renderRun(run)
			}
			return nil
		},
	}
}

func newSyncTriggerCmd(use, short string, trigger func(*client.SyncService, context.Context) (*client.SyncResponse, error)) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			resp, err := trigger(apiClient.Sync(), ctx)
			if err != nil {
				return fmt.Errorf("failed to start sync: %w", err)
			}
			if !resp.Started {
				fmt.Println("Everything is up to date")
				return nil
			}
			if wait {
				if resp.Run, err = waitForRun(ctx, resp.Run.ID); err != nil {
					return err
				}
			}

			if getOutputFormat() != "table" {
				return printOutput(resp)
			}
			renderRun(resp.Run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the run to finish")
	return cmd
}

// waitForRun polls the status until the run is no longer running
func waitForRun(ctx context.Context, id string) (*client.Run, error) {
	last := &client.Run{ID: id}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		status, err := apiClient.Sync().Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to poll sync status: %w", err)
		}
		running := false
		for _, run := range status.Running {
			if run.ID == id {
				last, running = run, true
			}
		}
		if !running {
			last.Finished = true
			return last, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func renderRun(run *client.Run) {
	state := "running"
	if run.Finished {
		state = "finished"
	}
	fmt.Printf("Run %s (%s, %s) started %s: %s\n", run.ID, run.Scope, run.Trigger,
		run.StartedAt.Local().Format("15:04:05"), state)
	if run.Error != "" {
		fmt.Printf("  error: %s\n", run.Error)
	}
	if len(run.Outcomes) > 0 {
		t := NewTable("KIND", "FETCHED", "UPSERTED", "CREATED", "FAILED", "DURATION", "ERROR")
		for _, o := range run.Outcomes {
			t.AddRow(o.Kind,
				strconv.Itoa(o.Fetched),
				strconv.Itoa(o.Upserted),
				strconv.Itoa(o.Created),
				strconv.Itoa(o.Failed),
				(time.Duration(o.DurationMs) * time.Millisecond).String(),
				truncate(o.Error, 50),
			)
		}
		t.Render()
	}
	if p := run.Prices; p != nil {
		fmt.Printf("  prices: %d fetched, %d skipped, %d failed, %d instances priced\n",
			p.Fetched, p.Skipped, p.Failed, p.Attached)
	}
}

func newSyncIntervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interval <duration>",
		Short: "Set the resources refresh interval (e.g. 30m, 2h)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[0], err)
			}
			if interval < time.Minute {
				return fmt.Errorf("interval must be at least one minute")
			}
			if err := apiClient.Sync().SetInterval(context.Background(), interval); err != nil {
				return fmt.Errorf("failed to set interval: %w", err)
			}
			fmt.Printf("Resources refresh interval set to %s\n", interval.Truncate(time.Minute))
			return nil
		},
	}
}
