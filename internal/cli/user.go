package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage budget owners",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user",
	RunE:  runUserAdd,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().String("name", "", "Display name")
	userAddCmd.Flags().String("email", "", "Email address")
	userAddCmd.Flags().String("lang", "vi", "Notification language")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	lang, _ := cmd.Flags().GetString("lang")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	user := &model.User{
		Name:     name,
		Email:    email,
		Settings: model.UserSettings{Language: lang, EmailAlerts: true, PushAlerts: true},
	}
	if err := store.CreateUser(cmd.Context(), user); err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), user.ID)
	return nil
}
