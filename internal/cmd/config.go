package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	configShowCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

var configShowCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Display the configuration after merging the config file over the defaults.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(app.Config)
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(app.Config)
	},
}
