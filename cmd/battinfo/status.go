package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/client"
	"github.com/charlie0129/battinfo/pkg/feed"
)

type statusData struct {
	State    *battery.State   `json:"state"`
	Identity *client.Identity `json:"identity"`
	Feed     *feed.Health     `json:"feed,omitempty"`
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetState()
	if err != nil {
		return nil, fmt.Errorf("failed to get battery state: %w", err)
	}

	id, err := apiClient.GetIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to get battery identity: %w", err)
	}

	health, err := apiClient.GetFeedHealth()
	if err != nil {
		return nil, fmt.Errorf("failed to get feed health: %w", err)
	}

	return &statusData{State: st, Identity: id, Feed: health}, nil
}

// statusFields lists the names --field accepts, one per daemon endpoint.
var statusFields = []string{"valid", "level", "charger-type", "charging-state", "level-status", "metrics"}

// fetchField asks the daemon for a single value and renders it plainly for
// scripts.
func fetchField(c *client.Client, name string) (string, error) {
	switch name {
	case "valid":
		v, err := c.GetValid()
		return strconv.FormatBool(v), err
	case "level":
		v, err := c.GetLevel()
		return strconv.Itoa(v), err
	case "charger-type":
		v, err := c.GetChargerType()
		return v.String(), err
	case "charging-state":
		v, err := c.GetChargingState()
		return v.String(), err
	case "level-status":
		v, err := c.GetLevelStatus()
		return v.String(), err
	case "metrics":
		m, err := c.GetMetrics()
		if err != nil {
			return "", err
		}
		b, err := json.MarshalIndent(m, "", "  ")
		return string(b), err
	}
	return "", fmt.Errorf("unknown field %q, want one of %v", name, statusFields)
}

func NewStatusCommand() *cobra.Command {
	var (
		asJSON bool
		field  string
	)

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current battery state",
		Long:    `Get the normalized battery state, its validity and the health of the sampling feed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if field != "" {
				v, err := fetchField(apiClient, field)
				if err != nil {
					return err
				}
				cmd.Println(v)
				return nil
			}

			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode status: %w", err)
				}
				cmd.Println(string(b))
				return nil
			}

			printStatus(cmd, data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	cmd.Flags().StringVar(&field, "field", "", fmt.Sprintf("print only one value, one of %v", statusFields))

	return cmd
}

func printStatus(cmd *cobra.Command, data *statusData) {
	s := data.State

	cmd.Println(bold("Battery:"))
	cmd.Printf("  Valid: %s\n", bool2Text(s.Valid))
	if !s.Valid {
		cmd.Println("    The backend cannot vouch for the values below right now.")
	}
	cmd.Printf("  Backend: %s (battery %d of %d)\n", bold("%s", data.Identity.Backend),
		data.Identity.BatteryIndex+1, data.Identity.BatteryCount)
	cmd.Printf("  Charger: %s\n", bold("%s", s.ChargerType))
	cmd.Printf("  State: %s\n", bold("%s", chargingStateText(s.ChargingState)))
	cmd.Printf("  Level: %s (%s)\n", intText(s.Level, "%"), levelStatusText(s.LevelStatus))

	cmd.Println()
	cmd.Println(bold("Metrics:"))
	cmd.Printf("  Remaining capacity: %s\n", intText(s.RemainingCapacity, ""))
	cmd.Printf("  Maximum capacity: %s\n", intText(s.MaximumCapacity, ""))
	cmd.Printf("  Voltage: %s\n", intText(s.Voltage, " mV"))
	cmd.Printf("  Current: %s\n", intText(s.CurrentFlow, " mA"))
	cmd.Printf("  Time to full: %s\n", durationText(s.RemainingChargingTime))
	cmd.Printf("  Temperature: %s\n", temperatureText(s.Temperature))
	cmd.Printf("  Cycle count: %s\n", intText(s.CycleCount, ""))

	if h := data.Feed; h != nil {
		cmd.Println()
		cmd.Println(bold("Feed:"))
		cmd.Printf("  Source: %s every %s\n", bold("%s", h.Source),
			time.Duration(h.IntervalSeconds*float64(time.Second)))
		cmd.Printf("  Recent samples: %s\n", bold("%d/%d", h.RecentSamples, h.ExpectedSamples))
		if !h.LastSample.IsZero() {
			cmd.Printf("  Last sample: %s ago\n", time.Since(h.LastSample).Round(time.Second))
		}
		if h.LastError != "" {
			cmd.Printf("  Last error: %s\n", h.LastError)
		}
	}
}
