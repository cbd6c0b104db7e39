package cli

import (
	"context"

	"github.com/spf13/cobra"

	"supportbot/internal/models"
)

func newTenantCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(newTenantCreateCmd(open), newTenantGetCmd(open), newTenantLookupCmd(open),
		newTenantActiveCmd(open, "activate", true), newTenantActiveCmd(open, "deactivate", false))
	return cmd
}

func newTenantCreateCmd(open Opener) *cobra.Command {
	var in models.Tenant
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Tenants == nil {
					return errNotConfigured
				}
				t, err := b.Tenants.CreateTenant(ctx, in)
				if err != nil {
					return err
				}
				return printTenant(cmd, t)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "business name")
	cmd.Flags().StringVar(&in.WhatsAppNumber, "whatsapp", "", "WhatsApp number the bot answers on")
	cmd.Flags().StringVar(&in.CustomPrompt, "prompt", "", "extra instructions added to every answer")
	cmd.Flags().StringVar(&in.OwnerNumber, "owner", "", "owner contact number")
	return cmd
}

func newTenantGetCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <tenant-id>",
		Short: "Show a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Tenants == nil {
					return errNotConfigured
				}
				t, err := b.Tenants.GetTenant(ctx, args[0])
				if err != nil {
					return err
				}
				return printTenant(cmd, t)
			})
		},
	}
}

func newTenantLookupCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <whatsapp-number>",
		Short: "Find the active tenant answering on a WhatsApp number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Tenants == nil {
					return errNotConfigured
				}
				t, err := b.Tenants.GetTenantByWhatsApp(ctx, args[0])
				if err != nil {
					return err
				}
				return printTenant(cmd, t)
			})
		},
	}
}

func newTenantActiveCmd(open Opener, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tenant-id>",
		Short: "Mark a tenant as " + map[bool]string{true: "active", false: "inactive"}[active],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Tenants == nil {
					return errNotConfigured
				}
				if err := b.Tenants.SetActive(ctx, args[0], active); err != nil {
					return err
				}
				cmd.Printf("tenant %s %sd\n", args[0], use)
				return nil
			})
		},
	}
}

func printTenant(cmd *cobra.Command, t models.Tenant) error {
	if wantJSON(cmd) {
		return printJSON(cmd, t)
	}
	cmd.Printf("%s  %s  whatsapp=%s active=%t\n", t.TenantID, t.Name, t.WhatsAppNumber, t.Active)
	return nil
}
