package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	statusCmd.Flags().BoolP("detailed", "d", false, "Show the full breakdown")
	statusCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show routing state, spend, and session summary",
	Example: `
# One-line status
modelmux status

# Full breakdown
modelmux status --detailed
`,
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

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
			fmt.Print(report.Detailed())
			return nil
		}

		fmt.Println(report.Summary())
		return nil
	},
}
