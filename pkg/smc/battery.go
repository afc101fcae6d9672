//go:build darwin

package smc

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// GetBatteryCharge returns the battery charge.
func (c *AppleSMC) GetBatteryCharge() (int, error) {
	logrus.Tracef("GetBatteryCharge called")

	v, err := c.Read(BatteryChargeKey)
	if err != nil {
		return 0, err
	}

	if len(v.Bytes) != 1 {
		return 0, fmt.Errorf("incorrect data length %d!=1", len(v.Bytes))
	}

	return int(v.Bytes[0]), nil
}

// IsPluggedIn returns whether the device is plugged in.
func (c *AppleSMC) IsPluggedIn() (bool, error) {
	logrus.Tracef("IsPluggedIn called")

	v, err := c.Read(ACPowerKey)
	if err != nil {
		return false, err
	}

	ret := len(v.Bytes) == 1 && int8(v.Bytes[0]) > 0
	logrus.Tracef("IsPluggedIn returned %t", ret)

	return ret, nil
}

// IsChargingEnabled returns whether charging is enabled.
func (c *AppleSMC) IsChargingEnabled() (bool, error) {
	logrus.Tracef("IsChargingEnabled called")

	v, err := c.Read(ChargingKey1)
	if err != nil {
		return false, err
	}

	ret := len(v.Bytes) == 1 && v.Bytes[0] == 0x0
	logrus.Tracef("IsChargingEnabled returned %t", ret)

	return ret, nil
}

// GetBatteryCurrent returns the battery current in mA, positive while
// charging.
func (c *AppleSMC) GetBatteryCurrent() (int, error) {
	logrus.Tracef("GetBatteryCurrent called")

	v, err := c.Read(BatteryCurrentKey)
	if err != nil {
		return 0, err
	}

	if len(v.Bytes) != 2 {
		return 0, fmt.Errorf("incorrect data length %d!=2", len(v.Bytes))
	}

	return int(int16(binary.LittleEndian.Uint16(v.Bytes))), nil
}
