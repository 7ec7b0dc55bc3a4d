// Replay - run the posture classifier over a landmark recording
//
// Reads a JSON-lines recording (one estimator result per line) and prints
// the classification of every frame. No camera or sidecar needed.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/sitposture/internal/config"
	"github.com/teslashibe/sitposture/internal/log"
	"github.com/teslashibe/sitposture/pkg/debug"
	"github.com/teslashibe/sitposture/pkg/estimator"
	"github.com/teslashibe/sitposture/pkg/posture"
)

// frameInterval spaces records that carry no timestamp, about 30fps.
const frameInterval = 33 * time.Millisecond

func main() {
	envFile := flag.String("env", ".env", "Env file to load before reading the environment")
	asJSON := flag.Bool("json", false, "Print one JSON result per line")
	debugFrames := flag.Bool("debug-frames", false, "Log metrics for every frame")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] recording.jsonl\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	s, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	debug.Frames = *debugFrames
	log.Init(s.LogLevel)

	if err := replay(flag.Arg(0), s.Posture, *asJSON); err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func replay(path string, cfg posture.Config, asJSON bool) error {
	rec, err := estimator.OpenReplay(path)
	if err != nil {
		return err
	}
	defer rec.Close()

	session, err := posture.NewSession(cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	start := time.Now()
	counts := map[posture.State]int{}

	for line := 1; ; line++ {
		r, err := rec.Next()
		if errors.Is(err, estimator.ErrEndOfRecording) {
			break
		}
		if err != nil {
			return err
		}

		at := r.Time(start)
		if r.TimestampMS == 0 {
			at = start.Add(time.Duration(line-1) * frameInterval)
		}

		res, err := session.Process(r.Result, r.Width, r.Height, at)
		if err != nil {
			if !asJSON {
				fmt.Printf("#%-5d skipped: %v\n", line, err)
			}
			continue
		}
		counts[res.State]++

		if asJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("#%-5d d=%.3f eye=%5.1f° ear=%5.1f°  %s\n",
			line, res.Distance, res.EyeTilt, res.EarTilt, res.State)
	}

	cal := session.Calibration()
	log.Info("replay finished",
		"recording", path,
		"calibrated", cal.Calibrated,
		"threshold", cal.Threshold,
		"skipped", session.Skipped(),
		"good", counts[posture.GoodPosture],
		"bad", counts[posture.BadPosture],
		"nodding", counts[posture.Nodding],
		"initializing", counts[posture.Initializing])
	return nil
}
