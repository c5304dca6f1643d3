package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/ec2inventory/pkg/client"
)

func newInstanceCmd() *cobra.Command {
	cmd := listCmd("instances", "List instances, or stop and terminate them", []string{"instance"},
		func(ctx context.Context, o *client.ListOptions) (*client.Page[client.Instance], error) {
			return apiClient.Inventory().Instances(ctx, o)
		},
		[]string{"ID", "ACCOUNT", "ZONE", "TYPE", "PLATFORM", "STATE", "HOURLY", "IMAGE"},
		func(i client.Instance) []string {
			hourly := "-"
			if i.HourlyPrice != nil {
				hourly = fmt.Sprintf("$%.4f", *i.HourlyPrice)
			}
			return []string{i.ID, i.AccountID, i.AvailabilityZone, i.InstanceType, i.EC2Platform,
				formatState(i.State), hourly, refValue(i.Links, "image")}
		})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop <instance-id>",
		Short: "Stop an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Inventory().StopInstance(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to stop instance: %w", err)
			}
			fmt.Printf("Instance %s stopped\n", args[0])
			return nil
		},
	})

	var yes bool
	terminate := &cobra.Command{
		Use:   "terminate <instance-id>",
		Short: "Terminate an instance and delete its delete-on-termination volumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(fmt.Sprintf("Terminate %s? This cannot be undone [y/N]: ", args[0])) {
				fmt.Println("Aborted")
				return nil
			}
			res, err := apiClient.Inventory().TerminateInstance(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to terminate instance: %w", err)
			}
			fmt.Printf("Instance %s terminated\n", res.InstanceID)
			if len(res.DeletedVolumes) > 0 {
				fmt.Printf("Deleted volumes: %s\n", strings.Join(res.DeletedVolumes, ", "))
			}
			return nil
		},
	}
	terminate.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	cmd.AddCommand(terminate)

	return cmd
}

func newVolumeCmd() *cobra.Command {
	cmd := listCmd("volumes", "List volumes, or detach and delete them", []string{"volume"},
		func(ctx context.Context, o *client.ListOptions) (*client.Page[client.Volume], error) {
			return apiClient.Inventory().Volumes(ctx, o)
		},
		[]string{"ID", "ACCOUNT", "ZONE", "SIZE", "TYPE", "STATE", "INSTANCE"},
		func(v client.Volume) []string {
			zone := ""
			if v.AvailabilityZone != nil {
				zone = *v.AvailabilityZone
			}
			return []string{v.ID, v.AccountID, zone, sizeGiB(v.Size), v.Type, formatState(v.State), refValue(v.Links, "instance")}
		})

	cmd.AddCommand(&cobra.Command{
		Use:   "detach <volume-id>",
		Short: "Detach a volume from its instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Inventory().DetachVolume(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to detach volume: %w", err)
			}
			fmt.Printf("Volume %s detached\n", args[0])
			return nil
		},
	})

	var yes bool
	del := &cobra.Command{
		Use:   "delete <volume-id>",
		Short: "Delete a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(fmt.Sprintf("Delete %s? This cannot be undone [y/N]: ", args[0])) {
				fmt.Println("Aborted")
				return nil
			}
			if err := apiClient.Inventory().DeleteVolume(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete volume: %w", err)
			}
			fmt.Printf("Volume %s deleted\n", args[0])
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	cmd.AddCommand(del)

	return cmd
}

func confirm(prompt string) bool {
	answer := strings.ToLower(promptInput(prompt))
	return answer == "y" || answer == "yes"
}
