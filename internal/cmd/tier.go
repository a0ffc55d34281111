package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelmux/modelmux/internal/tier"
)

func init() {
	tierCmd.Flags().StringP("reason", "r", "", "Why the switch is happening (stored with the outcome)")
}

var tierCmd = &cobra.Command{
	Use:   "tier <name>",
	Short: "Pin routing to a tier of the active strategy",
	Example: `
# Two-tier strategy
modelmux tier critical --reason "auth refactor review"

# Three-tier strategy
modelmux tier tier2
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		reason, _ := cmd.Flags().GetString("reason")
		res, err := app.Service.SwitchTier(context.Background(), args[0], reason)
		if err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println(res.Message)
		return nil
	},
}

var strategyCmd = &cobra.Command{
	Use:   "strategy <name>",
	Short: "Switch the tier strategy",
	Long: fmt.Sprintf(`Switch between tier strategies (%v).

Switching resets the active tier to the new strategy's default; tiers never
carry across strategies.`, tier.AllStrategies()),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		res := app.Service.SetStrategy(args[0])
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println(res.Message)
		return nil
	},
}

func init() {
	autoCmd.Flags().StringP("strategy", "s", "", "Also switch to this strategy")
}

var autoCmd = &cobra.Command{
	Use:   "auto <on|off>",
	Short: "Toggle automatic tier switching",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}

		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		strategy, _ := cmd.Flags().GetString("strategy")
		res := app.Service.SetAutoMode(on, strategy)
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println(res.Message)
		return nil
	},
}
