package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/clawbridge/internal/client"
	"github.com/user/clawbridge/internal/config"
)

var buildVersion = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	portFlag   int
	tokenFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "clawbridge",
	Short: "Drive the Claw CLI from a tray menu, a terminal menu or a local API",
	Long: `clawbridge keeps two terminals running the Claw CLI (an interactive
primary session and a secondary TUI session), sends status, gateway,
pairing and update commands to them, and reports progress through a
status indicator.

Run "clawbridge serve" to start the daemon. The other subcommands talk to
a running daemon.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/clawbridge/config.yaml)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Override the daemon port")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Override the API token")

	rootCmd.AddCommand(serveCmd, menuCmd, runCmd, checkCmd, statusCmd, sessionsCmd, outputCmd, historyCmd, compareCmd, versionCmd)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("token") {
		cfg.Token = tokenFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.BaseURL(), cfg.Token), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
