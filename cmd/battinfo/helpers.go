package main

import (
	"fmt"
	"math"

	"github.com/fatih/color"

	"github.com/charlie0129/battinfo/pkg/battery"
)

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// intText renders an integer metric, or a dim "unsupported".
func intText(v int, unit string) string {
	if v == battery.Unsupported {
		return color.New(color.Faint).Sprint("unsupported")
	}
	return bold("%d%s", v, unit)
}

func temperatureText(t float64) string {
	if math.IsNaN(t) {
		return color.New(color.Faint).Sprint("unsupported")
	}
	return bold("%.1f °C", t)
}

func chargingStateText(s battery.ChargingState) string {
	switch s {
	case battery.Charging:
		return color.GreenString(s.String())
	case battery.Discharging:
		return color.RedString(s.String())
	}
	return s.String()
}

func levelStatusText(l battery.LevelStatus) string {
	switch l {
	case battery.LevelEmpty:
		return color.New(color.Bold, color.FgRed).Sprint(l.String())
	case battery.LevelLow:
		return color.YellowString(l.String())
	case battery.LevelFull:
		return color.GreenString(l.String())
	}
	return l.String()
}

func durationText(seconds int) string {
	if seconds == battery.Unsupported {
		return color.New(color.Faint).Sprint("unsupported")
	}
	return bold("%s", fmt.Sprintf("%dh%02dm", seconds/3600, seconds%3600/60))
}
