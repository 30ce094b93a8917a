package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one budget threshold check",
	Long: `Scan the budgets of the current month and create the 80% and 100%
notifications that are due. Prints the number of notifications created.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := initApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.Monitor.RunThresholdCheck(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Period %s: %d notification(s) created\n", a.Monitor.Period(), count)
	return nil
}
