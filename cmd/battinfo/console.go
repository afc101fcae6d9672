package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/backend/propbus"
	"github.com/charlie0129/battinfo/pkg/backend/signal"
	"github.com/charlie0129/battinfo/pkg/batteryinfo"
	"github.com/charlie0129/battinfo/pkg/config"
	"github.com/charlie0129/battinfo/pkg/dispatch"
	"github.com/charlie0129/battinfo/pkg/events"
)

const consoleHelp = `commands:
  set <topic> <value>   publish a value (signal: integer code, propbus: text)
  invalid <topic>       mark a signal invalid, or remove a property
  valid <topic>         mark a signal valid again (signal only)
  state                 print the current state
  topics                list the topics of the backend
  help                  show this help
  quit                  leave the console`

// console drives a normalization layer over an in-memory transport, so
// firmware quirks can be replayed by hand.
type console struct {
	out     io.Writer
	info    *batteryinfo.Info
	emitter *signal.Emitter
	bus     *propbus.MemoryBus
	topics  []string
}

func newConsole(kind config.Backend, out io.Writer) (*console, error) {
	c := &console{out: out}
	mb := backend.NewMailbox()

	var b batteryinfo.Backend
	switch kind {
	case config.BackendSignal:
		c.emitter = signal.NewEmitter()
		a, err := signal.New(c.emitter, mb)
		if err != nil {
			return nil, err
		}
		for _, t := range signal.Topics {
			c.topics = append(c.topics, string(t))
		}
		b = a
	case config.BackendPropBus:
		c.bus = propbus.NewMemoryBus()
		a, err := propbus.New(c.bus, mb)
		if err != nil {
			return nil, err
		}
		for _, p := range propbus.Properties() {
			c.topics = append(c.topics, p.Name())
		}
		b = a
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}

	c.info = batteryinfo.New(b, mb)
	c.info.Observe(c.print)
	return c, nil
}

func (c *console) print(ch dispatch.Change) {
	name, payload := events.Payload(ch, timeNow())
	switch p := payload.(type) {
	case events.ValidityChangedEvent:
		fmt.Fprintf(c.out, "%s = %t\n", name, p.Valid)
	case events.FieldChangedEvent:
		v := p.Value
		if v == nil {
			v = "unsupported"
		}
		fmt.Fprintf(c.out, "%s = %v\n", name, v)
	}
}

// topic resolves short property names such as "Level" to "Battery.Level".
func (c *console) topic(name string) (string, error) {
	for _, t := range c.topics {
		if t == name || strings.TrimPrefix(t, "Battery.") == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topic %q, try 'topics'", name)
}

// exec runs one command line. It reports whether the console should exit.
func (c *console) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
		return false, nil
	case "topics":
		fmt.Fprintln(c.out, strings.Join(c.topics, "\n"))
		return false, nil
	case "state":
		st := c.info.State()
		fmt.Fprintf(c.out, "valid=%t charger=%s state=%s level=%d status=%s\n",
			st.Valid, st.ChargerType, st.ChargingState, st.Level, st.LevelStatus)
		return false, nil
	}

	if len(fields) < 2 {
		return false, fmt.Errorf("%s needs a topic", fields[0])
	}
	topic, err := c.topic(fields[1])
	if err != nil {
		return false, err
	}

	switch fields[0] {
	case "set":
		if len(fields) < 3 {
			return false, errors.New("set needs a value")
		}
		value := strings.Join(fields[2:], " ")
		if c.emitter != nil {
			n, err := strconv.Atoi(value)
			if err != nil {
				return false, fmt.Errorf("signal values are integers: %w", err)
			}
			c.emitter.Set(backend.Topic(topic), n)
		} else {
			c.bus.Publish(topic, value)
		}
	case "invalid":
		if c.emitter != nil {
			c.emitter.SetValid(backend.Topic(topic), false)
		} else {
			c.bus.Unset(topic)
		}
	case "valid":
		if c.emitter == nil {
			return false, errors.New("properties become valid by setting them")
		}
		c.emitter.SetValid(backend.Topic(topic), true)
	default:
		return false, fmt.Errorf("unknown command %q, try 'help'", fields[0])
	}

	c.info.Flush()
	return false, nil
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "battinfo_console_history")
}

func NewConsoleCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:     "console",
		GroupID: gAdvanced,
		Short:   "Replay backend values by hand",
		Long: `Start an interactive console with a local normalization layer over an
in-memory transport. Values typed in are normalized exactly like the daemon
does, and every resulting notification is printed.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "> ",
				HistoryFile: historyFile(),
			})
			if err != nil {
				return fmt.Errorf("failed to start console: %w", err)
			}
			defer func() { _ = rl.Close() }()

			c, err := newConsole(config.Backend(kind), rl.Stdout())
			if err != nil {
				return err
			}
			defer func() { _ = c.info.Close() }()

			fmt.Fprintln(rl.Stdout(), consoleHelp)
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						return nil
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				quit, err := c.exec(line)
				if err != nil {
					fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
				}
				if quit {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&kind, "backend", string(config.BackendSignal), "backend to emulate (signal or propbus)")

	return cmd
}
