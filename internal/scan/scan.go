// Package scan implements the worker's scan cycle: the fixed-period
// sample/evaluate/commit loop described in spec §4.2 and §4.4.
package scan

import (
	"context"
	"log"
	"time"

	"github.com/fenwick-automation/ladderd/internal/config"
	"github.com/fenwick-automation/ladderd/internal/counter"
	"github.com/fenwick-automation/ladderd/internal/gpio"
	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/ladder"
	"github.com/fenwick-automation/ladderd/internal/timer"
	"github.com/fenwick-automation/ladderd/internal/watchdog"
)

// Period is the nominal scan-cycle duration (spec §4.4: "20 ms nominal").
const Period = 20 * time.Millisecond

// YoloClearInterval is how often the scan loop clears the M39 ready bit to
// force the external vision process to re-assert it (spec §4.2 step 7,
// §9 Open Question 2: a worker-side safety net, not a removable toggle).
const YoloClearInterval = 15 * time.Second

// Loop owns one worker's scan cycle: sampling inputs, running timer/counter
// banks and the ladder evaluator in lockstep, and committing outputs.
type Loop struct {
	Img      *image.Image
	Driver   gpio.Driver
	Store    *config.Store
	Timers   *timer.Bank
	Counters *counter.Bank
	Watchdog *watchdog.Watchdog
	Log      *log.Logger

	prevEnable    map[string]bool
	prevTrigger   map[string]bool
	lastYoloClear time.Time
}

// New returns a ready Loop. All fields are required collaborators; nil
// Watchdog/Log are tolerated (no-op) for tests.
func New(img *image.Image, driver gpio.Driver, store *config.Store, timers *timer.Bank, counters *counter.Bank, wd *watchdog.Watchdog, logger *log.Logger) *Loop {
	return &Loop{
		Img:           img,
		Driver:        driver,
		Store:         store,
		Timers:        timers,
		Counters:      counters,
		Watchdog:      wd,
		Log:           logger,
		prevEnable:    make(map[string]bool),
		prevTrigger:   make(map[string]bool),
		lastYoloClear: time.Time{},
	}
}

// Run executes scan cycles until ctx is cancelled, then drives outputs to a
// safe state and returns. It never returns a non-nil error on ordinary
// shutdown; cycle overruns are latched into the image's error cell rather
// than treated as fatal (spec §4.4: "a single cycle exceeding the period
// does not stop the scan loop").
func (l *Loop) Run(ctx context.Context) error {
	l.lastYoloClear = time.Now()
	ticker := time.NewTicker(Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		default:
		}

		start := time.Now()
		l.cycle(start)
		elapsed := time.Since(start)

		if elapsed > Period {
			l.Img.ErrorCode.Store(uint32(image.ErrScanTimeout))
			if l.Log != nil {
				l.Log.Printf("scan: cycle overran period: %s > %s", elapsed, Period)
			}
			continue
		}

		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-time.After(Period - elapsed):
		}
	}
}

func (l *Loop) cycle(now time.Time) {
	inputs, err := l.Driver.ReadAllInputs()
	if err != nil {
		l.Img.ErrorCode.Store(uint32(image.ErrGPIOReadTimeout))
		if l.Log != nil {
			l.Log.Printf("scan: read inputs: %v", err)
		}
	}
	for i, v := range inputs {
		l.Img.Inputs[i].Store(v)
	}

	if err := l.Timers.Sync(l.Img, l.Store.Timers()); err != nil && l.Log != nil {
		l.Log.Printf("scan: sync timers: %v", err)
	}
	if err := l.Counters.Sync(l.Img, l.Store.Counters()); err != nil && l.Log != nil {
		l.Log.Printf("scan: sync counters: %v", err)
	}

	// Timers/counters consume the *previous* cycle's enable/trigger set,
	// producing the one-cycle deterministic delay spec §3.4 requires.
	l.Timers.Update(l.Img, now, l.prevEnable)
	l.Counters.Update(l.Img, l.prevTrigger)

	result := ladder.Evaluate(l.Store.Merged(), inputs, l.Img, l.Timers, l.Counters)

	for _, name := range result.ResetTimers {
		l.Timers.Reset(name)
	}
	for _, name := range result.ResetCounters {
		l.Counters.Reset(name)
	}

	l.Img.CommitEmergencyOutputs()
	l.commitOutputs()

	if now.Sub(l.lastYoloClear) >= YoloClearInterval {
		l.Img.ClearYoloReady()
		l.lastYoloClear = now
	}

	l.Img.ScanCount.Add(1)
	l.Img.SetScanTime(float64(time.Since(now).Microseconds()))
	if l.Watchdog != nil {
		l.Watchdog.Feed()
	}

	l.prevEnable = result.TimerEnable
	l.prevTrigger = result.CounterTrigger
}

// commitOutputs pushes the image's Outputs cells to GPIO and republishes the
// output mirror (Memory[46..51]) from what was actually written.
func (l *Loop) commitOutputs() {
	var out [image.NumOutputs]bool
	for i := range out {
		out[i] = l.Img.Outputs[i].Load()
	}
	if err := l.Driver.WriteAllOutputs(out); err != nil && l.Log != nil {
		l.Log.Printf("scan: write outputs: %v", err)
	}
	l.Img.SyncOutputMirror()
}

// shutdown drives outputs false and asks the GPIO driver for an emergency
// shutdown before the worker exits (spec §4.4 "Shutdown").
func (l *Loop) shutdown() {
	l.Img.EStop.Store(true)
	l.Img.CommitEmergencyOutputs()
	l.commitOutputs()
	if err := l.Driver.EmergencyShutdown(); err != nil && l.Log != nil {
		l.Log.Printf("scan: emergency shutdown: %v", err)
	}
}
