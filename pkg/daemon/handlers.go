package daemon

import (
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/version"
)

// sseHeartbeat keeps idle event streams from being closed by proxies.
var sseHeartbeat = 15 * time.Second

type batteryMetrics struct {
	Level                 int      `json:"level"`
	RemainingCapacity     int      `json:"remainingCapacity"`
	MaximumCapacity       int      `json:"maximumCapacity"`
	Voltage               int      `json:"voltage"`
	RemainingChargingTime int      `json:"remainingChargingTime"`
	CurrentFlow           int      `json:"currentFlow"`
	Temperature           *float64 `json:"temperature"`
	CycleCount            int      `json:"cycleCount"`
}

type batteryIdentity struct {
	Backend      string `json:"backend"`
	BatteryCount int    `json:"batteryCount"`
	BatteryIndex int    `json:"batteryIndex"`
}

func (s *server) getState(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.info.State())
}

func (s *server) getValid(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.info.IsValid())
}

func (s *server) getChargerType(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.info.ChargerType())
}

func (s *server) getChargingState(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.info.ChargingState())
}

func (s *server) getLevelStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.info.LevelStatus())
}

func (s *server) getLevel(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.info.Level())
}

func (s *server) getBatteryMetrics(c *gin.Context) {
	st := s.info.State()
	m := batteryMetrics{
		Level:                 st.Level,
		RemainingCapacity:     st.RemainingCapacity,
		MaximumCapacity:       st.MaximumCapacity,
		Voltage:               st.Voltage,
		RemainingChargingTime: st.RemainingChargingTime,
		CurrentFlow:           st.CurrentFlow,
		CycleCount:            st.CycleCount,
	}
	if !math.IsNaN(st.Temperature) {
		t := st.Temperature
		m.Temperature = &t
	}
	c.IndentedJSON(http.StatusOK, m)
}

func (s *server) getBatteryIdentity(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, batteryIdentity{
		Backend:      s.info.BackendName(),
		BatteryCount: s.info.BatteryCount(),
		BatteryIndex: s.info.BatteryIndex(),
	})
}

func (s *server) getFeedHealth(c *gin.Context) {
	if s.loop == nil {
		c.IndentedJSON(http.StatusOK, nil)
		return
	}
	c.IndentedJSON(http.StatusOK, s.loop.Health())
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func (s *server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	logrus.WithField("subscribers", s.hub.Subscribers()).Debug("event subscriber connected")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}
