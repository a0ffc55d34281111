package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/internal/ledger"
	"github.com/modelmux/modelmux/internal/tier"
)

func init() {
	recordUsageCmd.Flags().String("tier", "", "Tier the call ran on (default: the active tier)")
	recordUsageCmd.Flags().String("model", "", "Model that served the call (default: the tier's configured model)")
	recordUsageCmd.Flags().String("task", "", "Task the call served; journaled into session memory")
	recordUsageCmd.Flags().Int64("input-tokens", 0, "Input token count")
	recordUsageCmd.Flags().Int64("output-tokens", 0, "Output token count")
	recordUsageCmd.Flags().Bool("failed", false, "Journal the task outcome as failed")

	recordErrorCmd.Flags().String("task", "", "Task that failed; journaled into session memory")

	recordCmd.AddCommand(recordUsageCmd, recordErrorCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Journal usage and errors from completed calls",
	Long: `Journal what actually happened after a routed task ran. Usage records
feed the budget gate; errors feed escalation. Both also land in session
memory when a task is named.`,
}

var recordUsageCmd = &cobra.Command{
	Use:   "usage <cost>",
	Short: "Journal a completed call's cost in dollars",
	Example: `
# Journal a $0.42 call against the active tier
modelmux record usage 0.42 --task "review the auth module"

# Journal against an explicit tier and model
modelmux record usage 1.80 --tier critical --model claude-opus-4-1 --input-tokens 12000 --output-tokens 3000
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cost, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid cost %q: %w", args[0], err)
		}

		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		tierName, _ := cmd.Flags().GetString("tier")
		model, _ := cmd.Flags().GetString("model")
		task, _ := cmd.Flags().GetString("task")
		inputTokens, _ := cmd.Flags().GetInt64("input-tokens")
		outputTokens, _ := cmd.Flags().GetInt64("output-tokens")
		failed, _ := cmd.Flags().GetBool("failed")

		res, err := app.Service.RecordUsage(context.Background(), ledger.Record{
			Tier:         tier.Tier(tierName),
			Model:        model,
			Task:         task,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			Cost:         cost,
		}, !failed)
		if err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}

		fmt.Println(res.Message)
		if res.Status != nil && res.Status.Limit > 0 {
			fmt.Printf("Spent this period: $%.2f of $%.2f (%.1f%%)\n",
				res.Status.Spent, res.Status.Limit, res.Status.Percent)
			if res.Status.Blocked {
				fmt.Println("High-cost tiers are now BLOCKED for this period.")
			}
		}
		return nil
	},
}

var recordErrorCmd = &cobra.Command{
	Use:   "error",
	Short: "Journal a backing-service failure",
	Long: `Journal a failure of the backing service. Enough failures inside the
escalation window push the next orchestrated task one tier up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		task, _ := cmd.Flags().GetString("task")
		res, err := app.Service.RecordError(context.Background(), task, "")
		if err != nil {
			return err
		}

		fmt.Println(res.Message)
		return nil
	},
}
