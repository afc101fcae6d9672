package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.json") }},
		{"empty file", func(t *testing.T) string { return writeFile(t, "c.json", "  \n") }},
		{"empty object", func(t *testing.T) string { return writeFile(t, "c.json", "{}") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFile(tt.path(t))
			require.NoError(t, err)
			assert.Equal(t, BackendSignal, f.Backend())
			assert.Equal(t, SourcePlatform, f.Source())
			assert.Equal(t, 10*time.Second, f.SampleInterval())
			assert.False(t, f.AllowNonRootAccess())
			assert.Equal(t, MQTT{}, f.MQTT())
			assert.Equal(t, Redis{}, f.Redis())
		})
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "c.json",
			content: `{"backend":"propbus","sampleIntervalSeconds":30,
"mqtt":{"broker":"tcp://broker:1883","topicPrefix":"home/laptop"},
"redis":{"addr":"127.0.0.1:6379","ttlSeconds":60}}`,
		},
		{
			name: "yaml",
			file: "c.yaml",
			content: `backend: propbus
sampleIntervalSeconds: 30
mqtt:
  broker: tcp://broker:1883
  topicPrefix: home/laptop
redis:
  addr: 127.0.0.1:6379
  ttlSeconds: 60
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, BackendPropBus, f.Backend())
			assert.Equal(t, 30*time.Second, f.SampleInterval())
			assert.Equal(t, "tcp://broker:1883", f.MQTT().Broker)
			assert.Equal(t, "home/laptop", f.MQTT().TopicPrefix)
			assert.Equal(t, "127.0.0.1:6379", f.Redis().Addr)
			assert.Equal(t, 60, f.Redis().TTLSeconds)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"backend":`},
		{"unknown backend", `{"backend":"dbus"}`},
		{"unknown source", `{"source":"acpi"}`},
		{"zero interval", `{"sampleIntervalSeconds":0}`},
		{"propbus without broker", `{"backend":"propbus"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFile(writeFile(t, "c.json", tt.content))
			require.Error(t, err)
		})
	}
}

func TestEnvOverridesPasswords(t *testing.T) {
	f, err := NewFile(writeFile(t, "c.json", `{"mqtt":{"password":"file"},"redis":{"password":"file"}}`))
	require.NoError(t, err)
	assert.Equal(t, "file", f.MQTT().Password)

	t.Setenv(EnvMQTTPassword, "env-mqtt")
	t.Setenv(EnvRedisPassword, "env-redis")
	assert.Equal(t, "env-mqtt", f.MQTT().Password)
	assert.Equal(t, "env-redis", f.Redis().Password)
	assert.NotContains(t, f.LogrusFields(), "password")
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"c.json", "c.yml"} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), name)
			f := NewFileFromConfig(nil, p)
			f.SetBackend(BackendSignal)
			f.SetSource(SourceNone)
			f.SetSampleInterval(5 * time.Second)
			f.SetAllowNonRootAccess(true)
			require.NoError(t, f.Save())

			g, err := NewFile(p)
			require.NoError(t, err)
			assert.Equal(t, SourceNone, g.Source())
			assert.Equal(t, 5*time.Second, g.SampleInterval())
			assert.True(t, g.AllowNonRootAccess())
		})
	}
}

func TestSetSampleIntervalPanicsBelowOneSecond(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	assert.Panics(t, func() { f.SetSampleInterval(time.Millisecond) })
}
