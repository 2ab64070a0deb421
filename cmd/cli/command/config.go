package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd prints the effective configuration after .env, environment and flags
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective uplink configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := currentKey()
		if err != nil {
			return err
		}
		source := "ANVIL_UPLINK_KEY"
		switch {
		case key == "":
			source = "not set"
		case !cfg.HasUplinkKey():
			source = "keyring"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "URL:             %s\n", cfg.UplinkURL)
		fmt.Fprintf(out, "Key:             %s (%s)\n", maskKey(key), source)
		fmt.Fprintf(out, "Connect timeout: %s\n", durationOrNone(cfg.ConnectTimeout.String(), cfg.ConnectTimeout == 0))
		fmt.Fprintf(out, "Call timeout:    %s\n", durationOrNone(cfg.CallTimeout.String(), cfg.CallTimeout == 0))
		fmt.Fprintf(out, "Log:             %s/%s\n", cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func durationOrNone(s string, none bool) string {
	if none {
		return "none"
	}
	return s
}

func init() {
	rootCmd.AddCommand(configCmd)
}
