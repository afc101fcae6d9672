package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battinfo/pkg/batteryinfo"
	"github.com/charlie0129/battinfo/pkg/config"
	"github.com/charlie0129/battinfo/pkg/dispatch"
	"github.com/charlie0129/battinfo/pkg/events"
	"github.com/charlie0129/battinfo/pkg/feed"
	"github.com/charlie0129/battinfo/pkg/metrics"
	"github.com/charlie0129/battinfo/pkg/mirror"
)

// server holds what the HTTP handlers read from.
type server struct {
	info     *batteryinfo.Info
	hub      *events.Hub
	exporter *metrics.Exporter
	loop     *feed.Loop
}

func newServer(info *batteryinfo.Info, loop *feed.Loop) *server {
	exporter := metrics.New(info.State())
	return &server{
		info:     info,
		hub:      events.NewHub(exporter.EventDropped),
		exporter: exporter,
		loop:     loop,
	}
}

// observe fans a change out to the metrics, the SSE subscribers and the
// optional mirror. It runs on the control goroutine.
func (s *server) observe(m *mirror.Mirror) func(dispatch.Change) {
	return func(c dispatch.Change) {
		st := s.info.State()
		s.exporter.Observe(c, st)
		s.hub.Notify(c, time.Now())
		if m != nil {
			m.Observe(c, st)
		}
	}
}

func (s *server) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/state", s.getState)
	router.GET("/valid", s.getValid)
	router.GET("/charger-type", s.getChargerType)
	router.GET("/charging-state", s.getChargingState)
	router.GET("/level-status", s.getLevelStatus)
	router.GET("/level", s.getLevel)
	router.GET("/battery-metrics", s.getBatteryMetrics)
	router.GET("/battery-identity", s.getBatteryIdentity)
	router.GET("/feed-health", s.getFeedHealth)
	router.GET("/version", getVersion)
	router.GET("/events", s.streamEvents)
	router.GET("/metrics", gin.WrapH(s.exporter.Handler()))

	return router
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	gin.SetMode(gin.ReleaseMode)

	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	info, loop, closeBackend, err := buildBackend(conf)
	if err != nil {
		logrus.Fatalf("failed to set up battery backend: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	srv := newServer(info, loop)

	var m *mirror.Mirror
	if r := conf.Redis(); r.Addr != "" {
		m = mirror.New(mirror.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Key:      r.Key,
			Channel:  r.Channel,
			TTL:      time.Duration(r.TTLSeconds) * time.Second,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := m.Ping(pingCtx); err != nil {
			logrus.WithError(err).Warn("redis is not reachable yet, mirroring anyway")
		}
		pingCancel()
		m.Seed(info.State())
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(ctx)
		}()
	}
	unobserve := info.Observe(srv.observe(m))

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		ossignal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			backendBefore, sourceBefore := conf.Backend(), conf.Source()
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if conf.Backend() != backendBefore || conf.Source() != sourceBefore {
				logrus.Warn("backend or source changed, restart the daemon to apply")
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	httpSrv := &http.Server{
		Handler: srv.setupRoutes(),
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Debugln("battery info loop starts")
		info.Run(ctx)
	}()

	if loop != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
		}()
	}

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	ossignal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = httpSrv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	cancel()
	wg.Wait()
	unobserve()

	logrus.Info("closing battery backend")
	if err := info.Close(); err != nil {
		logrus.Errorf("failed to close battery backend: %v", err)
	}
	closeBackend()

	logrus.Info("exiting")
	return nil
}
