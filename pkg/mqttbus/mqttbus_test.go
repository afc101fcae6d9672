package mqttbus

import (
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/backend/propbus"
	"github.com/charlie0129/battinfo/pkg/battery"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                       { return true }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	subscribed   map[string]mqtt.MessageHandler
	unsubscribed []string
	subErr       error
}

func newFakeClient(connected bool) *fakeClient {
	return &fakeClient{connected: connected, subscribed: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) Connect() mqtt.Token { return &fakeToken{} }

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return &fakeToken{err: c.subErr}
	}
	c.subscribed[topic] = cb
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subscribed, t)
	}
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(_ uint) {}

// deliver plays the broker: it hands a message to the subscribed handler.
func (c *fakeClient) deliver(topic, payload string) {
	c.mu.Lock()
	cb := c.subscribed[topic]
	c.mu.Unlock()
	if cb != nil {
		cb(nil, &fakeMessage{topic: topic, payload: []byte(payload), retained: true})
	}
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "Battery.Level"},
		{"home/laptop", "home/laptop/Battery.Level"},
		{"/home/laptop/", "home/laptop/Battery.Level"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			b := newBus(newFakeClient(false), tt.prefix)
			assert.Equal(t, tt.want, b.TopicFor("Battery.Level"))
		})
	}
}

func TestMessagesBecomeValues(t *testing.T) {
	c := newFakeClient(true)
	b := newBus(c, "home/laptop")

	var got []propbus.Value
	cancel, err := b.Subscribe("Battery.ChargingState", func(v propbus.Value) { got = append(got, v) })
	require.NoError(t, err)
	assert.Contains(t, c.subscribed, "home/laptop/Battery.ChargingState")

	c.deliver("home/laptop/Battery.ChargingState", " charging\n")
	c.deliver("home/laptop/Battery.ChargingState", "charging")
	c.deliver("home/laptop/Battery.ChargingState", "")

	assert.Equal(t, []propbus.Value{
		{Text: "charging", Valid: true},
		{},
	}, got)

	cancel()
	assert.Equal(t, []string{"home/laptop/Battery.ChargingState"}, c.unsubscribed)
}

func TestMessageOutsidePrefixIgnored(t *testing.T) {
	b := newBus(newFakeClient(true), "home/laptop")
	var got []propbus.Value
	_, err := b.Subscribe("Battery.Level", func(v propbus.Value) { got = append(got, v) })
	require.NoError(t, err)

	b.handleMessage(nil, &fakeMessage{topic: "other/Battery.Level", payload: []byte("low")})
	assert.Empty(t, got)
}

func TestSubscribeBeforeConnect(t *testing.T) {
	c := newFakeClient(false)
	b := newBus(c, "")

	var got []propbus.Value
	_, err := b.Subscribe("Battery.Level", func(v propbus.Value) { got = append(got, v) })
	require.NoError(t, err)
	assert.Empty(t, c.subscribed)

	c.connected = true
	b.resubscribe()
	assert.Contains(t, c.subscribed, "Battery.Level")

	c.deliver("Battery.Level", "normal")
	assert.Equal(t, []propbus.Value{{Text: "normal", Valid: true}}, got)
}

func TestSubscribeFailure(t *testing.T) {
	c := newFakeClient(true)
	c.subErr = errors.New("not authorized")
	b := newBus(c, "")

	_, err := b.Subscribe("Battery.Level", func(propbus.Value) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Battery.Level")
	assert.Empty(t, b.subs)
}

func TestConnectionLostInvalidatesProperties(t *testing.T) {
	c := newFakeClient(true)
	b := newBus(c, "")
	mb := backend.NewMailbox()
	a, err := propbus.New(b, mb)
	require.NoError(t, err)
	defer a.Close()

	c.deliver("Battery.ChargingState", "discharging")
	c.deliver("Battery.ChargePercentage", "41")
	assert.Equal(t, battery.Discharging, a.Read(battery.FieldChargingState))
	assert.True(t, a.Validity().Valid())
	mb.Drain()

	b.invalidateAll()
	assert.Equal(t, battery.UnknownChargingState, a.Read(battery.FieldChargingState))
	assert.Equal(t, battery.Unsupported, a.Read(battery.FieldLevel))
	assert.False(t, a.Validity().Valid())
	assert.Equal(t, 2, mb.Len())
}

func TestNewGeneratesClientID(t *testing.T) {
	b := New(Options{Broker: "tcp://127.0.0.1:1", TopicPrefix: "x"})
	assert.NotNil(t, b.client)
	assert.Equal(t, "x/Battery.Level", b.TopicFor("Battery.Level"))
}
