package command

import (
	"os"

	"github.com/spf13/cobra"

	"uplinkhub/internal/smoketest"
)

// smoke.go holds the one-shot checks: confirm and test.

var testProcedure string

// confirmCmd mirrors the confirm-uplink binary
var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Connect, call test_uplink_connection once, disconnect",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfile(cmd, smoketest.ConfirmProfile)
	},
}

// testCmd mirrors the test-uplink binary
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the uplink smoke test and print every result field",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProfile(cmd, smoketest.TestProfile.WithProcedure(testProcedure))
	},
}

func runProfile(cmd *cobra.Command, p smoketest.Profile) error {
	key, err := currentKey()
	if err != nil {
		return err
	}
	runner := &smoketest.Runner{
		Key:       key,
		Connector: smoketest.NewConnector(cfg, logger),
		Out:       cmd.OutOrStdout(),
		Logger:    logger,
	}
	// the runner already printed what went wrong
	if code := runner.Run(cmd.Context(), p); code != smoketest.ExitSuccess {
		os.Exit(code)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVarP(&testProcedure, "procedure", "p", smoketest.TestProfile.Procedure, "server function to call")
}
