package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battinfo/pkg/battery"
	"github.com/charlie0129/battinfo/pkg/feed"
)

// Metrics is the numeric part of the state, as served by /battery-metrics.
// Unsupported integers are -1, an unsupported temperature is nil.
type Metrics struct {
	Level                 int      `json:"level"`
	RemainingCapacity     int      `json:"remainingCapacity"`
	MaximumCapacity       int      `json:"maximumCapacity"`
	Voltage               int      `json:"voltage"`
	RemainingChargingTime int      `json:"remainingChargingTime"`
	CurrentFlow           int      `json:"currentFlow"`
	Temperature           *float64 `json:"temperature"`
	CycleCount            int      `json:"cycleCount"`
}

// Identity tells which battery the daemon reports on.
type Identity struct {
	Backend      string `json:"backend"`
	BatteryCount int    `json:"batteryCount"`
	BatteryIndex int    `json:"batteryIndex"`
}

func (c *Client) GetState() (*battery.State, error) {
	ret, err := c.Get("/state")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery state")
	}

	var s battery.State
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery state")
	}
	return &s, nil
}

func (c *Client) GetValid() (bool, error) {
	ret, err := c.Get("/valid")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get battery validity")
	}
	return parseBoolResponse(ret)
}

func (c *Client) GetLevel() (int, error) {
	ret, err := c.Get("/level")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get battery level")
	}
	level, err := strconv.Atoi(ret)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to unmarshal battery level")
	}
	return level, nil
}

func (c *Client) GetChargerType() (battery.ChargerType, error) {
	ret, err := c.Get("/charger-type")
	if err != nil {
		return battery.UnknownCharger, pkgerrors.Wrapf(err, "failed to get charger type")
	}
	var t battery.ChargerType
	if err := json.Unmarshal([]byte(ret), &t); err != nil {
		return battery.UnknownCharger, pkgerrors.Wrapf(err, "failed to unmarshal charger type")
	}
	return t, nil
}

func (c *Client) GetLevelStatus() (battery.LevelStatus, error) {
	ret, err := c.Get("/level-status")
	if err != nil {
		return battery.LevelUnknown, pkgerrors.Wrapf(err, "failed to get level status")
	}
	var l battery.LevelStatus
	if err := json.Unmarshal([]byte(ret), &l); err != nil {
		return battery.LevelUnknown, pkgerrors.Wrapf(err, "failed to unmarshal level status")
	}
	return l, nil
}

func (c *Client) GetChargingState() (battery.ChargingState, error) {
	ret, err := c.Get("/charging-state")
	if err != nil {
		return battery.UnknownChargingState, pkgerrors.Wrapf(err, "failed to get charging state")
	}
	var s battery.ChargingState
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return battery.UnknownChargingState, pkgerrors.Wrapf(err, "failed to unmarshal charging state")
	}
	return s, nil
}

func (c *Client) GetMetrics() (*Metrics, error) {
	ret, err := c.Get("/battery-metrics")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery metrics")
	}
	var m Metrics
	if err := json.Unmarshal([]byte(ret), &m); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery metrics")
	}
	return &m, nil
}

func (c *Client) GetIdentity() (*Identity, error) {
	ret, err := c.Get("/battery-identity")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery identity")
	}
	var id Identity
	if err := json.Unmarshal([]byte(ret), &id); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery identity")
	}
	return &id, nil
}

// GetFeedHealth returns nil without an error when the daemon runs no feed.
func (c *Client) GetFeedHealth() (*feed.Health, error) {
	ret, err := c.Get("/feed-health")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get feed health")
	}
	if ret == "null" {
		return nil, nil
	}
	var h feed.Health
	if err := json.Unmarshal([]byte(ret), &h); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal feed health")
	}
	return &h, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

func parseBoolResponse(resp string) (bool, error) {
	switch resp {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, pkgerrors.Errorf("unexpected response: %s", resp)
	}
}
