// SitPosture - webcam posture monitor
//
// Reads frames from a camera, sends them to a pose estimation sidecar and
// shows the posture classification in a window and on a web dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/teslashibe/sitposture/internal/config"
	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/camera"
	"github.com/teslashibe/sitposture/pkg/debug"
	"github.com/teslashibe/sitposture/pkg/estimator"
	"github.com/teslashibe/sitposture/pkg/monitor"
	"github.com/teslashibe/sitposture/pkg/posture"
	"github.com/teslashibe/sitposture/pkg/web"
)

// HighGUI calls must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

type options struct {
	settings  config.Settings
	noWindow  bool
	pipelined bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(opts.settings.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Error("sitposture stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads env settings and lets command line flags override them.
func parseFlags() (options, error) {
	envFile := flag.String("env", ".env", "Env file to load before reading the environment")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log metrics for every frame (very verbose)")
	device := flag.String("device", "", "Camera index or video file (overrides CAMERA_DEVICE)")
	estimatorURL := flag.String("estimator", "", "Pose sidecar websocket URL (overrides ESTIMATOR_URL)")
	port := flag.String("port", "", "Dashboard port, \"off\" to disable (overrides DASHBOARD_PORT)")
	calFrames := flag.Int("calibration-frames", 0, "Frames averaged for the baseline (overrides CALIBRATION_WINDOW_FRAMES)")
	noMirror := flag.Bool("no-mirror", false, "Do not flip frames horizontally")
	noWindow := flag.Bool("no-window", false, "Run without the preview window")
	pipelined := flag.Bool("pipelined", false, "Estimate on a separate goroutine, dropping stale frames")
	flag.Parse()

	s, err := config.Load(*envFile)
	if err != nil {
		return options{}, err
	}

	debug.Enabled, debug.Frames = *debugFlag, *debugFrames
	if *debugFlag || *debugFrames {
		s.LogLevel = "debug"
	}
	if *device != "" {
		s.Camera.Device = *device
	}
	if *estimatorURL != "" {
		s.EstimatorURL = *estimatorURL
	}
	switch *port {
	case "":
	case "off":
		s.DashboardPort = ""
	default:
		s.DashboardPort = *port
	}
	if *calFrames > 0 {
		s.Posture.CalibrationFrames = *calFrames
	}
	if *noMirror {
		s.Camera.Mirror = false
	}

	return options{settings: s, noWindow: *noWindow, pipelined: *pipelined}, nil
}

func run(ctx context.Context, opts options) error {
	s := opts.settings

	session, err := posture.NewSession(s.Posture)
	if err != nil {
		return err
	}

	source, err := camera.Open(s.Camera)
	if err != nil {
		return err
	}
	defer source.Close()

	rc := estimator.DefaultRemoteConfig()
	rc.URL = s.EstimatorURL
	est, err := estimator.Dial(ctx, rc)
	if err != nil {
		return err
	}
	defer est.Close()
	log.Info("pose sidecar connected", "url", rc.URL)

	sinks := []monitor.Sink{stateLogger()}

	var dashboard *web.Server
	if s.DashboardPort != "" {
		dashboard = web.NewServer(s.DashboardPort, session.ID.String(), s.Posture)
		dashboard.StartAsync(ctx)
		sinks = append(sinks, dashboard)
	}

	if !opts.noWindow {
		win := newWindow("SitPosture")
		defer win.Close()
		sinks = append(sinks, win)
	}

	mon := monitor.New(source, est, session, sinks...)
	if dashboard != nil {
		dashboard.StatsFunc = mon.Stats
	}

	if opts.pipelined {
		err = mon.RunPipelined(ctx)
	} else {
		err = mon.Run(ctx)
	}

	st := mon.Stats()
	log.Info("session finished",
		"session", session.ID.String(),
		"frames", st.Frames,
		"classified", st.Classified,
		"skipped", st.Skipped,
		"estimator_errors", st.EstimatorErrors,
		"dropped", st.Dropped)
	return err
}

// stateLogger logs each posture change.
func stateLogger() monitor.Sink {
	var last posture.State
	seen := false
	return monitor.SinkFunc(func(_ context.Context, obs monitor.Observation) error {
		if !obs.Fresh {
			return nil
		}
		if !seen || obs.Result.State != last {
			log.Info("posture", "state", obs.Result.State, "frame", obs.Result.Frame, "distance", obs.Result.Distance)
		}
		last, seen = obs.Result.State, true
		return nil
	})
}
