package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battinfo/pkg/backend"
	"github.com/charlie0129/battinfo/pkg/backend/signal"
	"github.com/charlie0129/battinfo/pkg/batteryinfo"
	"github.com/charlie0129/battinfo/pkg/config"
	"github.com/charlie0129/battinfo/pkg/feed"
	"github.com/charlie0129/battinfo/pkg/mapper"
	"github.com/charlie0129/battinfo/pkg/utils/ptr"
	"github.com/charlie0129/battinfo/pkg/version"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*server, *signal.Emitter) {
	t.Helper()
	e := signal.NewEmitter()
	e.Set(signal.TopicChargerType, mapper.ChargerDCP)
	e.Set(signal.TopicBatteryState, mapper.StateCharging)
	e.Set(signal.TopicBatteryStatus, mapper.StatusOk)
	e.Set(signal.TopicBatteryLevel, 64)

	mb := backend.NewMailbox()
	a, err := signal.New(e, mb)
	require.NoError(t, err)
	info := batteryinfo.New(a, mb)
	t.Cleanup(func() { _ = info.Close() })

	s := newServer(info, nil)
	info.Observe(s.observe(nil))
	return s, e
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestHandlers(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.setupRoutes()

	tests := []struct {
		path string
		want string
	}{
		{"/valid", "true"},
		{"/level", "64"},
		{"/charger-type", `"wall"`},
		{"/charging-state", `"charging"`},
		{"/level-status", `"ok"`},
		{"/version", `"` + version.Version + `"`},
		{"/feed-health", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, router, tt.path)
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestStateAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.setupRoutes()

	code, body := get(t, router, "/state")
	require.Equal(t, http.StatusOK, code)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, "charging", st["chargingState"])
	assert.Equal(t, 64.0, st["level"])
	assert.Equal(t, -1.0, st["voltage"])
	assert.Nil(t, st["temperature"])

	code, body = get(t, router, "/battery-metrics")
	require.Equal(t, http.StatusOK, code)
	var m batteryMetrics
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	assert.Equal(t, 64, m.Level)
	assert.Equal(t, -1, m.CycleCount)
	assert.Nil(t, m.Temperature)

	code, body = get(t, router, "/battery-identity")
	require.Equal(t, http.StatusOK, code)
	var id batteryIdentity
	require.NoError(t, json.Unmarshal([]byte(body), &id))
	assert.Equal(t, batteryIdentity{Backend: signal.Name, BatteryCount: 1, BatteryIndex: 0}, id)
}

func TestChangesReachMetrics(t *testing.T) {
	s, e := newTestServer(t)
	router := s.setupRoutes()

	e.SetValid(signal.TopicBatteryLevel, false)
	s.info.Flush()

	_, body := get(t, router, "/valid")
	assert.Equal(t, "false", body)

	_, body = get(t, router, "/metrics")
	assert.Contains(t, body, "battinfo_valid 0")
	assert.Contains(t, body, `battinfo_notifications_total{field="valid"} 1`)
}

func TestFeedHealth(t *testing.T) {
	s, e := newTestServer(t)
	s.loop = feed.NewLoop(&staticSource{}, e, time.Minute)
	s.loop.Once()

	_, body := get(t, s.setupRoutes(), "/feed-health")
	var h feed.Health
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	assert.Equal(t, "static", h.Source)
	assert.Equal(t, 60.0, h.IntervalSeconds)
	assert.Empty(t, h.LastError)
}

type staticSource struct{}

func (staticSource) Name() string { return "static" }

func (staticSource) Sample() (feed.Sample, error) {
	return feed.Sample{
		Charger: ptr.To(mapper.ChargerDCP),
		State:   ptr.To(mapper.StateCharging),
		Status:  ptr.To(mapper.StatusOk),
		Level:   ptr.To(64),
	}, nil
}

func TestEventStream(t *testing.T) {
	s, e := newTestServer(t)
	ts := httptest.NewServer(s.setupRoutes())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	e.Set(signal.TopicBatteryLevel, 65)
	s.info.Flush()

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event:battery.level", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "data:"))
	assert.Contains(t, lines[1], `"value":65`)
}

func TestBuildBackendSignalWithoutSource(t *testing.T) {
	conf := config.NewFileFromConfig(&config.RawFileConfig{
		Backend: ptr.To(config.BackendSignal),
		Source:  ptr.To(config.SourceNone),
	}, "")

	info, loop, closeFn, err := buildBackend(conf)
	require.NoError(t, err)
	defer closeFn()
	defer info.Close()

	assert.Nil(t, loop)
	assert.Equal(t, signal.Name, info.BackendName())
	assert.False(t, info.IsValid())
}

func TestNewSourceUnknown(t *testing.T) {
	_, _, err := newSource("acpi")
	assert.Error(t, err)
}

func TestSlowSubscriberDropsReachMetrics(t *testing.T) {
	s, e := newTestServer(t)
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	for level := 1; level <= cap(ch)+3; level++ {
		e.Set(signal.TopicBatteryLevel, level)
		s.info.Flush()
	}
	assert.Equal(t, uint64(3), s.hub.Dropped(ch))

	_, body := get(t, s.setupRoutes(), "/metrics")
	assert.Contains(t, body, `battinfo_events_dropped_total{event="battery.level"} 3`)
}
