package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vanlang-budget/budget-guardian/pkg/model"
	"github.com/vanlang-budget/budget-guardian/pkg/monitor"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Inspect and clean up notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's notifications",
	RunE:  runNotificationsList,
}

var notificationsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete read notifications past the retention period",
	RunE:  runNotificationsCleanup,
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsCleanupCmd)

	notificationsListCmd.Flags().StringP("user", "u", "", "User id")
	notificationsListCmd.Flags().Bool("unread", false, "Only unread notifications")
	notificationsListCmd.Flags().IntP("limit", "n", 50, "Maximum number of notifications")
	_ = notificationsListCmd.MarkFlagRequired("user")
}

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	unread, _ := cmd.Flags().GetBool("unread")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.ListNotifications(cmd.Context(), model.NotificationFilter{
		UserID:     userID,
		UnreadOnly: unread,
		Limit:      limit,
	})
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No notifications.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CREATED\tTYPE\tREAD\tTITLE\tMESSAGE\n")
	for _, n := range list {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
			n.CreatedAt.Format("2006-01-02 15:04"), n.Type, n.Read, n.Title, n.Message)
	}
	return w.Flush()
}

func runNotificationsCleanup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cleaner := monitor.NewCleaner(store, cfg.NotificationRetention(), nil, newLogger(cfg))
	deleted, err := cleaner.PurgeReadNotifications(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d read notification(s) older than %s\n", deleted, cfg.Retention.Notifications)
	return nil
}
