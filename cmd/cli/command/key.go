package command

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"uplinkhub/cmd/cli/authentication"
)

// keyCmd groups the keyring commands
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the uplink key stored in the OS keyring",
}

var keySaveCmd = &cobra.Command{
	Use:   "save [key]",
	Short: "Save an uplink key (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read key from stdin: %w", err)
			}
			key = line
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("key is empty")
		}

		if err := authentication.StoreUplinkKey(key, cfg.UplinkURL); err != nil {
			return fmt.Errorf("failed to save key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Uplink key saved (%s)\n", maskKey(key))
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which key will be used, masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg.HasUplinkKey() {
			fmt.Fprintf(out, "Key: %s (from ANVIL_UPLINK_KEY)\n", maskKey(cfg.UplinkKey))
			return nil
		}
		stored, err := authentication.GetUplinkKey()
		if errors.Is(err, authentication.ErrNoStoredKey) {
			fmt.Fprintln(out, "No uplink key configured")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read keyring: %w", err)
		}
		fmt.Fprintf(out, "Key: %s (from keyring)\n", maskKey(stored.Key))
		if stored.URL != "" {
			fmt.Fprintf(out, "Saved for: %s\n", stored.URL)
		}
		return nil
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored uplink key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteUplinkKey(); err != nil {
			return fmt.Errorf("failed to clear key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Uplink key removed")
		return nil
	},
}

// maskKey keeps the first and last four characters
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySaveCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyClearCmd)
}
