package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/ec2inventory/pkg/client"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage linked AWS accounts",
	}

	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountAddCmd())
	cmd.AddCommand(newAccountRemoveCmd())

	return cmd
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := apiClient.Accounts().List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(accounts)
			}

			t := NewTable("ID", "NAME", "ACCESS KEY", "CREATED")
			for _, a := range accounts {
				t.AddRow(a.ID, a.Name, a.AccessKeyID, a.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			t.Render()
			return nil
		},
	}
}

func newAccountAddCmd() *cobra.Command {
	var name, accessKey string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an AWS key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = promptInput("Account name: ")
			}
			if accessKey == "" {
				accessKey = promptInput("AWS Access Key ID: ")
			}
			secret := promptPassword("AWS Secret Access Key: ")

			account, err := apiClient.Accounts().Add(context.Background(), client.AddAccountRequest{
				Name:            name,
				AccessKeyID:     accessKey,
				SecretAccessKey: secret,
			})
			if err != nil {
				return fmt.Errorf("failed to add account: %w", err)
			}

			fmt.Printf("Linked account %s (%s)\n", account.Name, account.ID)
			fmt.Println("Resources will be fetched on the next sync. Run 'ec2inventory sync ensure' to start now.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&accessKey, "access-key-id", "", "AWS access key id")

	return cmd
}

func newAccountRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Unlink an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Accounts().Remove(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to remove account: %w", err)
			}
			fmt.Printf("Account %s removed\n", args[0])
			return nil
		},
	}
}
