package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/battinfo/pkg/config"
)

// configKeys lists the settings `config set` can change.
var configKeys = []string{"backend", "source", "sampleIntervalSeconds", "allowNonRootAccess"}

// applySetting parses value for key and stores it in conf. Nothing is
// written to disk.
func applySetting(conf config.Config, key, value string) error {
	switch key {
	case "backend":
		conf.SetBackend(config.Backend(value))
	case "source":
		conf.SetSource(config.Source(value))
	case "sampleIntervalSeconds":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", value, err)
		}
		if seconds < 1 {
			return fmt.Errorf("sampleIntervalSeconds must be at least 1, got %d", seconds)
		}
		conf.SetSampleInterval(time.Duration(seconds) * time.Second)
	case "allowNonRootAccess":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", value, err)
		}
		conf.SetAllowNonRootAccess(b)
	default:
		return fmt.Errorf("unknown setting %q, want one of %v", key, configKeys)
	}
	return nil
}

// setConfig changes one setting in the file at path and saves it.
func setConfig(path, key, value string) error {
	conf, err := config.NewFile(path)
	if err != nil {
		return err
	}
	if err := applySetting(conf, key, value); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	return conf.Save()
}

func printConfig(cmd *cobra.Command, conf config.Config) {
	cmd.Printf("backend: %s\n", conf.Backend())
	cmd.Printf("source: %s\n", conf.Source())
	cmd.Printf("sampleIntervalSeconds: %d\n", int(conf.SampleInterval()/time.Second))
	cmd.Printf("allowNonRootAccess: %t\n", conf.AllowNonRootAccess())
	if m := conf.MQTT(); m.Broker != "" {
		cmd.Printf("mqtt.broker: %s\n", m.Broker)
	}
	if r := conf.Redis(); r.Addr != "" {
		cmd.Printf("redis.addr: %s\n", r.Addr)
	}
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: gAdvanced,
		Short:   "Show or change the daemon config file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings, defaults included",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				conf, err := config.NewFile(configPath)
				if err != nil {
					return err
				}
				printConfig(cmd, conf)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <key> <value>",
			Short:     "Change one setting and save the file",
			Long:      fmt.Sprintf("Change one setting and save the file. Keys: %v.\nSend SIGHUP to a running daemon to reload it.", configKeys),
			Args:      cobra.ExactArgs(2),
			ValidArgs: configKeys,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := setConfig(configPath, args[0], args[1]); err != nil {
					return err
				}
				cmd.Printf("%s set to %s in %s\n", args[0], args[1], configPath)
				return nil
			},
		},
	)

	return cmd
}
