package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/service"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant the admin role to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setUserRole(args[0], entity.RoleAdmin)
	},
}

var userDemoteCmd = &cobra.Command{
	Use:   "demote <username>",
	Short: "Revoke the admin role from a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setUserRole(args[0], entity.RoleUser)
	},
}

func init() {
	userCmd.AddCommand(userPromoteCmd)
	userCmd.AddCommand(userDemoteCmd)
	rootCmd.AddCommand(userCmd)
}

func setUserRole(username, role string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openUserStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.close()

	user, err := service.NewAdminService(store).SetRoleByUsername(ctx, username, role)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return fmt.Errorf("user %q does not exist", username)
		}
		return err
	}

	fmt.Printf("user_id: %s\n", user.ID)
	fmt.Printf("username: %s\n", user.Username)
	fmt.Printf("role: %s\n", user.Role)
	return nil
}
