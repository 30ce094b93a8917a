package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vanlang-budget/budget-guardian/pkg/messages"
	"github.com/vanlang-budget/budget-guardian/pkg/model"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage monthly budgets",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create a budget or change its amount",
	RunE:  runBudgetSet,
}

var budgetSpendCmd = &cobra.Command{
	Use:   "spend",
	Short: "Record spending against a budget",
	RunE:  runBudgetSpend,
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show budget usage",
	RunE:  runBudgetStatus,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetSpendCmd)
	budgetCmd.AddCommand(budgetStatusCmd)

	for _, c := range []*cobra.Command{budgetSetCmd, budgetSpendCmd} {
		c.Flags().StringP("user", "u", "", "Owning user id")
		c.Flags().StringP("category", "c", "", "Budget category")
		c.Flags().StringP("amount", "a", "", "Amount in VND")
		periodFlags(c)
		_ = c.MarkFlagRequired("user")
		_ = c.MarkFlagRequired("category")
		_ = c.MarkFlagRequired("amount")
	}

	budgetStatusCmd.Flags().StringP("user", "u", "", "Filter by user id")
	periodFlags(budgetStatusCmd)
}

func runBudgetSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	category, _ := cmd.Flags().GetString("category")
	amount, err := amountFlag(cmd)
	if err != nil {
		return err
	}
	period, err := periodFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	budget := &model.Budget{
		UserID:   userID,
		Category: category,
		Amount:   amount,
		Month:    period.Month,
		Year:     period.Year,
	}
	if err := store.SetBudget(cmd.Context(), budget); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Budget set:\n")
	fmt.Fprintf(out, "  ID:        %s\n", budget.ID)
	fmt.Fprintf(out, "  Category:  %s\n", budget.Category)
	fmt.Fprintf(out, "  Amount:    %sđ\n", messages.FormatAmount(budget.Amount))
	fmt.Fprintf(out, "  Period:    %s\n", period)
	return nil
}

func runBudgetSpend(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	category, _ := cmd.Flags().GetString("category")
	amount, err := amountFlag(cmd)
	if err != nil {
		return err
	}
	period, err := periodFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := store.AddSpend(cmd.Context(), userID, category, period, amount)
	if err != nil {
		return fmt.Errorf("record spend: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %sđ of %sđ (%s%%)\n",
		b.Category, period, messages.FormatAmount(b.Spent), messages.FormatAmount(b.Amount),
		messages.FormatPercent(b.PercentUsed()))
	return nil
}

func runBudgetStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetString("user")
	period, err := periodFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	budgets, err := store.ListBudgets(cmd.Context(), model.BudgetFilter{
		UserID: userID,
		Month:  period.Month,
		Year:   period.Year,
	})
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(budgets) == 0 {
		fmt.Fprintf(out, "No budgets for %s. Use 'vbg budget set' to create one.\n", period)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CATEGORY\tPERIOD\tAMOUNT\tSPENT\tREMAINING\tUSAGE\tNOTIFIED\n")
	for _, b := range budgets {
		remaining := b.Remaining()
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		pct := b.PercentUsed()
		status := ""
		switch {
		case pct.GreaterThanOrEqual(decimal.NewFromInt(model.ThresholdExceeded)):
			status = " [EXCEEDED]"
		case pct.GreaterThanOrEqual(decimal.NewFromInt(model.ThresholdWarning)):
			status = " [WARNING]"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s%%%s\t%d%%\n",
			b.Category, b.Period(), messages.FormatAmount(b.Amount), messages.FormatAmount(b.Spent),
			messages.FormatAmount(remaining), pct.StringFixed(1), status, b.NotifiedThreshold,
		)
	}
	return w.Flush()
}

func amountFlag(cmd *cobra.Command) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
