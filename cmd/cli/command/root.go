package command

// root.go defines the root command for uplinkctl and the settings every subcommand shares.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"uplinkhub/cmd/cli/authentication"
	"uplinkhub/internal/config"
	"uplinkhub/internal/logging"
)

var (
	uplinkURL string // --url, overrides ANVIL_UPLINK_URL
	verbose   bool   // --verbose, debug logs on stderr

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uplinkctl",
	Short: "uplinkctl - verify and hold Anvil uplink connections",
	Long: `uplinkctl checks that this machine can reach a hosted app through its uplink.
It can:
- Confirm the uplink with a single diagnostic call
- Run the full smoke test and print every result field
- Call any server function by name
- Hold the uplink open so the server can call back into this machine
- Keep the uplink key in the OS keyring

The key is read from ANVIL_UPLINK_KEY first, then from the keyring ("uplinkctl key save").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if uplinkURL != "" {
			loaded.UplinkURL = uplinkURL
		}
		if _, set := os.LookupEnv("LOG_LEVEL"); !set {
			loaded.LogLevel = "warn"
		}
		if verbose {
			loaded.LogLevel = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&uplinkURL, "url", "", "uplink endpoint (default $ANVIL_UPLINK_URL or "+config.DefaultUplinkURL+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol details to stderr")
}

// resolveKey picks the uplink key: environment first, keyring second.
// An empty result is not an error here, the runner reports it.
func resolveKey(envKey string, stored func() (*authentication.StoredKey, error)) (string, error) {
	if key := strings.TrimSpace(envKey); key != "" {
		return key, nil
	}
	sk, err := stored()
	if err != nil {
		if errors.Is(err, authentication.ErrNoStoredKey) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return strings.TrimSpace(sk.Key), nil
}

// currentKey resolves the key for the loaded config
func currentKey() (string, error) {
	return resolveKey(cfg.UplinkKey, authentication.GetUplinkKey)
}
