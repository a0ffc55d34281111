package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	budgetSetCmd.Flags().Float64("alert", 0, "Warn threshold percent (default thresholds: 50 notify, 80 warn, 100 block)")
	budgetCmd.AddCommand(budgetSetCmd, budgetShowCmd)
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect or change the monthly budget",
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <monthly-limit>",
	Short: "Set the monthly spend limit in dollars",
	Long: `Set the monthly spend limit. The change applies immediately to this
process only; edit the config file to make it permanent. A limit of 0
disables budget tracking.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid limit %q: %w", args[0], err)
		}

		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		alert, _ := cmd.Flags().GetFloat64("alert")
		res := app.Service.SetBudget(limit, alert)
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println(res.Message)
		return nil
	},
}

var budgetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current period's spend against the budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Service.GetStatus(context.Background())
		if err != nil {
			return err
		}

		if report.Spend == nil {
			fmt.Println("No usage store configured.")
			return nil
		}

		if !report.Budget.Enabled() {
			fmt.Printf("Spent this period: $%.2f (no limit set)\n", report.Spend.Spent)
			return nil
		}

		fmt.Printf("Spent this period: $%.2f of $%.2f (%.1f%%)\n",
			report.Spend.Spent, report.Spend.Limit, report.Spend.Percent)
		for _, a := range report.Spend.Alerts {
			fmt.Printf("  %.0f%% threshold crossed (%s)\n", a.Threshold.Percent, a.Threshold.Action)
		}
		if report.Spend.Blocked {
			fmt.Println("High-cost tiers are blocked for the rest of the period.")
		}
		return nil
	},
}
