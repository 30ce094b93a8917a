package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanlang-budget/budget-guardian/internal/app"
	"github.com/vanlang-budget/budget-guardian/internal/config"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
	"github.com/vanlang-budget/budget-guardian/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vbg",
	Short: "Budget Guardian - budget threshold notifications",
	Long: `Budget Guardian watches monthly budgets and notifies their owners once
when spending reaches 80% and once when it reaches 100% of the budgeted amount.
It can run a single check, serve the scheduler and HTTP API, and manage the
users, budgets and notifications it works on.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.vbg/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	return app.NewLogger(cfg)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initApp creates the fully wired service.
func initApp(cfg *config.Config) (*app.App, error) {
	return app.New(cfg, newLogger(cfg))
}

// periodFlags registers --month and --year on cmd.
func periodFlags(cmd *cobra.Command) {
	cmd.Flags().Int("month", 0, "Budget month 1-12 (default: current month)")
	cmd.Flags().Int("year", 0, "Budget year (default: current year)")
}

// periodFromFlags resolves --month and --year, defaulting to the current
// month in the configured time zone.
func periodFromFlags(cmd *cobra.Command, cfg *config.Config) (model.Period, error) {
	loc, err := cfg.Location()
	if err != nil {
		return model.Period{}, err
	}
	p := model.PeriodOf(time.Now().In(loc))

	if month, _ := cmd.Flags().GetInt("month"); month != 0 {
		p.Month = month
	}
	if year, _ := cmd.Flags().GetInt("year"); year != 0 {
		p.Year = year
	}
	if !p.Valid() {
		return model.Period{}, fmt.Errorf("invalid period %d/%d", p.Month, p.Year)
	}
	return p, nil
}
