package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/battinfo/pkg/client"
	"github.com/charlie0129/battinfo/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/battinfo.sock"
	configPath     = "/etc/battinfo.json"
	envFile        = ".env"

	apiClient *client.Client
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

// loadEnv reads KEY=VALUE pairs from envFile without overriding the real
// environment. A missing file is not an error.
func loadEnv() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("failed to load %s: %v", envFile, err)
	}
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: battinfo daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'battinfo daemon' or check --daemon-socket.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or set allowNonRootAccess in the daemon config")
	}
}

// needsDaemon tells whether cmd talks to a running daemon.
func needsDaemon(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "daemon", "console", "version", "help", "completion", "config", "show", "set":
		return false
	}
	return true
}

func checkVersion() {
	daemonVersion, err := apiClient.GetVersion()
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			logrus.Error("battinfo daemon is too old to report its version")
		}
		return
	}
	if daemonVersion != version.Version {
		logrus.WithFields(logrus.Fields{
			"clientVersion": version.Version,
			"daemonVersion": daemonVersion,
		}).Warn("Version mismatch between client and daemon. Output may be incomplete.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battinfo",
		Short: "battinfo reports one normalized, validity-aware view of the battery",
		Long: `battinfo reports one normalized, validity-aware view of the battery.

The daemon reads a charger/battery signal service or a battery property bus,
normalizes every value and notifies subscribers only when something changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}
			loadEnv()

			apiClient = client.NewClient(unixSocketPath)
			if needsDaemon(cmd) {
				checkVersion()
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path (.json, .yaml or .yml)")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "battinfo daemon unix socket path")
	globalFlags.StringVar(&envFile, "env-file", envFile, "file with environment overrides such as "+
		"BATTINFO_MQTT_PASSWORD")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewWatchCommand(),
		NewConsoleCommand(),
		NewConfigCommand(),
	)

	return cmd
}
