package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battinfo/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Print battery changes as they happen",
		Long: `Print battery changes as they happen.

Every line is one notification from the daemon: a field that changed, or the
validity of the battery information flipping.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch, err := apiClient.SubscribeEvents(ctx)
			if err != nil {
				return err
			}

			for ev := range ch {
				cmd.Println(formatEvent(ev, time.Now()))
			}
			if ctx.Err() == nil {
				return fmt.Errorf("daemon closed the event stream")
			}
			return nil
		},
	}
}

func formatEvent(ev events.Event, now time.Time) string {
	ts := now.Format(time.TimeOnly)

	if ev.Name == events.BatteryValid {
		p, err := events.DecodeAs[events.ValidityChangedEvent](ev)
		if err != nil {
			return fmt.Sprintf("%s %s %s", ts, ev.Name, string(ev.Data))
		}
		if p.Valid {
			return fmt.Sprintf("%s %s", ts, color.GreenString("battery information is valid"))
		}
		return fmt.Sprintf("%s %s", ts, color.RedString("battery information is not valid"))
	}

	p, err := events.DecodeAs[events.FieldChangedEvent](ev)
	if err != nil || p.Field == "" {
		return fmt.Sprintf("%s %s %s", ts, ev.Name, string(ev.Data))
	}
	value := fmt.Sprint(p.Value)
	if p.Value == nil {
		value = "unsupported"
	}
	return fmt.Sprintf("%s %s = %s", ts, p.Field, bold("%s", value))
}
