package command

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"uplinkhub/cmd/cli/command/state"
	"uplinkhub/internal/smoketest"
)

var holdName string

// connectCmd keeps the uplink open until Enter or Ctrl+C
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Hold the uplink open so the server can call this machine",
	Long: `Connect and stay connected, serving the uplink_ping function back to the server.

Press Enter (or Ctrl+C) to disconnect. While connected, "uplinkctl status" shows the held uplink.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if existing, _ := state.LoadHoldState(); existing != nil && existing.IsProcessRunning() {
			return fmt.Errorf("an uplink is already held by pid %d (%s)", existing.PID, existing.URL)
		}

		key, err := currentKey()
		if err != nil {
			return err
		}
		name := holdName
		if name == "" {
			name, _ = os.Hostname()
		}

		runner := &smoketest.Runner{
			Key:       key,
			Connector: smoketest.NewConnector(cfg, logger),
			Out:       cmd.OutOrStdout(),
			Logger:    logger,
		}
		held := &state.HoldState{
			URL:         cfg.UplinkURL,
			Name:        name,
			ConnectedAt: time.Now().UTC(),
			PID:         os.Getpid(),
		}
		return recordHold(logger, held, func() error {
			return runner.Hold(cmd.Context(), name, smoketest.WaitForEnter(cmd.InOrStdin()))
		})
	},
}

// recordHold keeps the hold state file for exactly as long as hold runs,
// however it ends (Enter, Ctrl+C, or a failed connect)
func recordHold(logger *slog.Logger, held *state.HoldState, hold func() error) error {
	if err := state.SaveHoldState(held); err != nil {
		logger.Warn("hold_state_save_failed", "error", err)
	}
	defer func() {
		if err := state.ClearHoldState(); err != nil {
			logger.Warn("hold_state_clear_failed", "error", err)
		}
	}()
	return hold()
}

// statusCmd reports the uplink held by a running "uplinkctl connect"
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an uplink is being held",
	RunE: func(cmd *cobra.Command, args []string) error {
		held, err := state.LoadHoldState()
		if err != nil {
			return fmt.Errorf("failed to read hold state: %w", err)
		}
		out := cmd.OutOrStdout()
		if held == nil {
			fmt.Fprintln(out, "No uplink held")
			return nil
		}
		if !held.IsProcessRunning() {
			// holder died without cleaning up
			state.ClearHoldState()
			fmt.Fprintln(out, "No uplink held (cleared stale state)")
			return nil
		}
		fmt.Fprintln(out, "✓ Uplink held")
		fmt.Fprintf(out, "   Name: %s\n", held.Name)
		fmt.Fprintf(out, "   URL: %s\n", held.URL)
		fmt.Fprintf(out, "   Since: %s (%s)\n", held.ConnectedAt.Format(time.RFC3339), time.Since(held.ConnectedAt).Round(time.Second))
		fmt.Fprintf(out, "   PID: %d\n", held.PID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(statusCmd)

	connectCmd.Flags().StringVarP(&holdName, "name", "n", "", "name reported by uplink_ping (default hostname)")
}
