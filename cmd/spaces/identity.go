package main

import (
	"fmt"

	"github.com/dkeye/Spaces/internal/adapters/identity"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage the device's current user",
}

var identitySetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Store the user id this device acts as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := identity.NewFileStore(cfg.IdentityPath).Set(domain.UserID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "identity set to %s\n", args[0])
		return nil
	},
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored user id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		id, ok := identity.NewFileStore(cfg.IdentityPath).CurrentUserID()
		if !ok {
			return domain.ErrNoIdentity
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	identityCmd.AddCommand(identitySetCmd, identityShowCmd)
	rootCmd.AddCommand(identityCmd)
}
