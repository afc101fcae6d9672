// Package mqttbus implements the property bus over MQTT. Every property is a
// retained topic whose payload is the property text. An empty payload
// removes the property.
package mqttbus

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/backend/propbus"
)

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
	quiesceMillis    = 250
)

// Options configures the connection to the broker.
type Options struct {
	// Broker is a URL such as tcp://localhost:1883.
	Broker   string
	Username string
	Password string
	// ClientID defaults to "battinfo-<random>".
	ClientID string
	// TopicPrefix is joined to every property name with "/".
	TopicPrefix string
}

// client is the part of mqtt.Client used by Bus.
type client interface {
	Connect() mqtt.Token
	IsConnectionOpen() bool
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Bus is a propbus.Bus backed by an MQTT broker.
type Bus struct {
	client client
	prefix string

	mu     sync.Mutex
	subs   map[string]map[int]func(propbus.Value)
	values map[string]propbus.Value
	nextID int
}

var _ propbus.Bus = &Bus{}

// New creates a Bus for opts. Call Connect to reach the broker.
func New(opts Options) *Bus {
	b := newBus(nil, opts.TopicPrefix)

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "battinfo-" + uuid.NewString()
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(clientID)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(5 * time.Second)
	o.SetOnConnectHandler(func(c mqtt.Client) {
		logrus.WithFields(logrus.Fields{
			"broker":   opts.Broker,
			"clientID": clientID,
		}).Info("mqtt connected")
		b.resubscribe()
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logrus.WithError(err).WithField("broker", opts.Broker).Warn("mqtt connection lost")
		b.invalidateAll()
	})

	b.client = mqtt.NewClient(o)
	return b
}

func newBus(c client, prefix string) *Bus {
	return &Bus{
		client: c,
		prefix: strings.Trim(prefix, "/"),
		subs:   make(map[string]map[int]func(propbus.Value)),
		values: make(map[string]propbus.Value),
	}
}

// Connect starts connecting to the broker. With connect retry enabled the
// token completes once the first attempt has been made, so an unreachable
// broker is not an error: properties stay invalid until it comes up.
func (b *Bus) Connect() error {
	t := b.client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		logrus.Warn("mqtt broker not reachable yet, retrying in background")
		return nil
	}
	if err := t.Error(); err != nil {
		return pkgerrors.Wrap(err, "failed to connect to mqtt broker")
	}
	return nil
}

// Close disconnects from the broker.
func (b *Bus) Close() {
	b.client.Disconnect(quiesceMillis)
}

// TopicFor returns the MQTT topic carrying the named property.
func (b *Bus) TopicFor(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

func (b *Bus) nameFor(topic string) (string, bool) {
	if b.prefix == "" {
		return topic, true
	}
	return strings.CutPrefix(topic, b.prefix+"/")
}

// Subscribe registers fn for the named property and subscribes to its topic
// on the broker if connected. The known value, if any, is delivered at once.
func (b *Bus) Subscribe(name string, fn func(propbus.Value)) (func(), error) {
	b.mu.Lock()
	first := len(b.subs[name]) == 0
	if b.subs[name] == nil {
		b.subs[name] = make(map[int]func(propbus.Value))
	}
	id := b.nextID
	b.nextID++
	b.subs[name][id] = fn
	current, known := b.values[name]
	b.mu.Unlock()

	if first && b.client.IsConnectionOpen() {
		if err := b.subscribeTopic(name); err != nil {
			b.removeSub(name, id)
			return nil, err
		}
	}

	if known {
		fn(current)
	}

	return func() {
		if b.removeSub(name, id) && b.client.IsConnectionOpen() {
			b.client.Unsubscribe(b.TopicFor(name))
		}
	}, nil
}

// removeSub reports whether name has no subscribers left.
func (b *Bus) removeSub(name string, id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[name], id)
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
		return true
	}
	return false
}

func (b *Bus) subscribeTopic(name string) error {
	topic := b.TopicFor(name)
	t := b.client.Subscribe(topic, 1, b.handleMessage)
	if !t.WaitTimeout(subscribeTimeout) {
		return pkgerrors.Errorf("timed out subscribing to %s", topic)
	}
	if err := t.Error(); err != nil {
		return pkgerrors.Wrapf(err, "failed to subscribe to %s", topic)
	}
	logrus.WithField("topic", topic).Debug("mqtt subscribed")
	return nil
}

// resubscribe runs on every (re)connect. Retained messages then refresh
// every property that is still published.
func (b *Bus) resubscribe() {
	b.mu.Lock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	b.mu.Unlock()

	for _, name := range names {
		if err := b.subscribeTopic(name); err != nil {
			logrus.WithError(err).Error("failed to resubscribe")
		}
	}
}

func (b *Bus) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	name, ok := b.nameFor(msg.Topic())
	if !ok {
		logrus.WithField("topic", msg.Topic()).Debug("ignoring message outside prefix")
		return
	}

	text := strings.TrimSpace(string(msg.Payload()))
	v := propbus.Value{Text: text, Valid: text != ""}

	logrus.WithFields(logrus.Fields{
		"topic":    msg.Topic(),
		"value":    v.Text,
		"retained": msg.Retained(),
	}).Trace("mqtt message received")

	b.set(name, v)
}

// invalidateAll marks every known property as having no provider.
func (b *Bus) invalidateAll() {
	b.mu.Lock()
	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	b.mu.Unlock()

	for _, name := range names {
		b.set(name, propbus.Value{})
	}
}

func (b *Bus) set(name string, v propbus.Value) {
	b.mu.Lock()
	if old, ok := b.values[name]; ok && old == v {
		b.mu.Unlock()
		return
	}
	b.values[name] = v
	fns := make([]func(propbus.Value), 0, len(b.subs[name]))
	for _, fn := range b.subs[name] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
