package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/internal/ops"
)

func init() {
	orchestrateCmd.Flags().StringP("force-tier", "f", "", "Route to a specific tier, skipping classification")
	orchestrateCmd.Flags().StringP("context", "c", "", "Free-form note stored with the outcome")
	orchestrateCmd.Flags().Bool("no-switch", false, "Report the decision without changing the active tier")
	orchestrateCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate [task...]",
	Short: "Decide which tier a task should run on",
	Example: `
# Route a task
modelmux orchestrate "review the authentication architecture"

# Force a tier for one task (still budget-gated)
modelmux orchestrate --force-tier critical "summarize the incident"

# Machine-readable output
modelmux orchestrate --json "fix a typo in the readme"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		forceTier, _ := cmd.Flags().GetString("force-tier")
		note, _ := cmd.Flags().GetString("context")
		noSwitch, _ := cmd.Flags().GetBool("no-switch")
		asJSON, _ := cmd.Flags().GetBool("json")

		task := strings.Join(args, " ")

		res, err := app.Service.Orchestrate(ctx, task, ops.OrchestrateOptions{
			Context:   note,
			ForceTier: forceTier,
			NoSwitch:  noSwitch,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}

		fmt.Println(res.Message)
		if res.Result.Switched {
			fmt.Printf("Active tier switched: %s -> %s\n", res.Result.Previous, res.Result.Tier)
		}
		return nil
	},
}
