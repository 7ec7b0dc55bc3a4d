// Package web provides a real-time posture dashboard
package web

import (
	"context"
	"embed"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/hub"
	"github.com/teslashibe/sitposture/pkg/monitor"
	"github.com/teslashibe/sitposture/pkg/posture"
)

//go:embed static
var assets embed.FS

// Status is the dashboard's view of the running session
type Status struct {
	SessionID   string                   `json:"session_id"`
	Calibration posture.CalibrationState `json:"calibration"`
	Latest      *posture.Result          `json:"latest,omitempty"`
	Detected    bool                     `json:"detected"` // landmarks on the most recent frame
	Stats       *monitor.Stats           `json:"stats,omitempty"`
}

// Server is the web dashboard server
type Server struct {
	app  *fiber.App
	port string
	cfg  posture.Config

	status   Status
	statusMu sync.RWMutex

	// Hubs for websocket broadcast
	postureHub *hub.Hub
	cameraHub  *hub.Hub

	// StatsFunc, when set, supplies loop counters for /api/status
	StatsFunc func() monitor.Stats
}

// NewServer creates a dashboard for one posture session
func NewServer(port, sessionID string, cfg posture.Config) *Server {
	s := &Server{
		port:       port,
		cfg:        cfg,
		status:     Status{SessionID: sessionID},
		postureHub: hub.New("posture"),
		cameraHub:  hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "SitPosture Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/posture", websocket.New(s.handlePostureWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	// Dashboard page, after the routes so it never shadows them
	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(assets),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	return s
}

// Start runs the hubs and serves until ctx is done or listening fails
func (s *Server) Start(ctx context.Context) error {
	log.Info("web dashboard listening", "url", "http://localhost:"+s.port)

	go s.postureHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			log.Warn("web dashboard shutdown", "error", err)
		}
	}()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("web dashboard stopped", "error", err)
		}
	}()
}

// Publish records a fresh result and pushes it to posture subscribers
func (s *Server) Publish(res posture.Result, cal posture.CalibrationState) {
	s.statusMu.Lock()
	s.status.Latest = &res
	s.status.Calibration = cal
	s.status.Detected = true
	s.statusMu.Unlock()

	if err := s.postureHub.BroadcastJSON(res); err != nil {
		log.Warn("encode posture update", "error", err)
	}
}

// PublishFrame pushes a JPEG frame to camera subscribers
func (s *Server) PublishFrame(jpeg []byte) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(jpeg)
}

// Emit implements monitor.Sink
func (s *Server) Emit(ctx context.Context, obs monitor.Observation) error {
	if obs.Fresh {
		s.Publish(obs.Result, obs.Calibration)
	} else {
		s.statusMu.Lock()
		s.status.Detected = false
		s.statusMu.Unlock()
	}
	s.PublishFrame(obs.Frame.JPEG)
	return nil
}

// Snapshot returns a copy of the current status
func (s *Server) Snapshot() Status {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()

	if st.Latest != nil {
		latest := *st.Latest
		st.Latest = &latest
	}
	if s.StatsFunc != nil {
		stats := s.StatsFunc()
		st.Stats = &stats
	}
	return st
}
