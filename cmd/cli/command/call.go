package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"uplinkhub/internal/config"
	"uplinkhub/internal/smoketest"
	"uplinkhub/internal/uplink"
)

// callCmd calls an arbitrary server function and prints its raw response as JSON
var callCmd = &cobra.Command{
	Use:   "call <procedure> [args...]",
	Short: "Call a server function and print the response",
	Long: `Connect, call <procedure> once with the given positional arguments, print the
response as JSON, then disconnect.

Arguments that parse as JSON are sent as such (42, true, "text", {"a":1}),
anything else is sent as a plain string.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := currentKey()
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("%w: %s not set and no key in the keyring", uplink.ErrConfiguration, config.EnvUplinkKey)
		}

		conn := smoketest.NewConnector(cfg, logger)
		client, err := uplink.Connect(cmd.Context(), key, conn.Options)
		if err != nil {
			return err
		}
		defer client.Disconnect()

		resp, err := client.Call(cmd.Context(), args[0], parseArgs(args[1:])...)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// parseArgs turns command line words into call arguments
func parseArgs(words []string) []any {
	out := make([]any, 0, len(words))
	for _, w := range words {
		var v any
		if err := json.Unmarshal([]byte(w), &v); err != nil {
			v = w
		}
		out = append(out, v)
	}
	return out
}

func init() {
	rootCmd.AddCommand(callCmd)
}
