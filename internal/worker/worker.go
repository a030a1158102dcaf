// Package worker is the child process's own entry point: it hosts the
// scan loop, the 1 Hz heartbeat incrementer, the indicator blinker, the
// config watcher, and the Modbus front-end as goroutines sharing one
// process image (spec §4.4 "Scheduling model", OS threads in the
// original, goroutines here, one per responsibility).
package worker

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenwick-automation/ladderd/internal/config"
	"github.com/fenwick-automation/ladderd/internal/counter"
	"github.com/fenwick-automation/ladderd/internal/gpio"
	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/modbus"
	"github.com/fenwick-automation/ladderd/internal/scan"
	"github.com/fenwick-automation/ladderd/internal/shm"
	"github.com/fenwick-automation/ladderd/internal/timer"
	"github.com/fenwick-automation/ladderd/internal/watchdog"
)

// indicatorFastPeriod and indicatorSlowPeriod are the blink rates named in
// spec §4.4: fast (300 ms) while M39 is clear, slow (2 s) once it is set.
const (
	indicatorFastPeriod = 300 * time.Millisecond
	indicatorSlowPeriod = 2 * time.Second
)

// heartbeatPeriod is the worker's own liveness tick into the image,
// independent of and faster than the supervisor's 5 s stall bound.
const heartbeatPeriod = 1 * time.Second

// Config wires the worker's collaborators together. ConfigPath is the
// unified-mode file, tried first (spec §6.2); SystemConfigPath/UserConfigPath
// are the split-mode fallback, only consulted if ConfigPath is unset or
// fails to load.
type Config struct {
	ShmPath          string
	GPIO             gpio.Config
	ConfigPath       string
	SystemConfigPath string
	UserConfigPath   string
	ModbusAddr       string
	WatchdogPeriod   time.Duration
	Log              *log.Logger
}

// Worker is the running child process's collaborators.
type Worker struct {
	cfg      Config
	runID    string
	seg      *shm.Segment
	driver   gpio.Driver
	store    *config.Store
	timers   *timer.Bank
	counters *counter.Bank
	wd       *watchdog.Watchdog
	loop     *scan.Loop
	server   *modbus.Server
}

// New attaches to shared memory, opens GPIO, loads the initial
// configuration, and wires the scan loop, watchdog, and Modbus server.
// Any failure here is fatal to the worker (spec §7: initialization
// anomalies are fatal; the supervisor observes the exit and performs
// emergency shutdown).
func New(cfg Config) (*Worker, error) {
	seg, err := shm.Attach(cfg.ShmPath)
	if err != nil {
		return nil, err
	}

	driver, err := gpio.Open(cfg.GPIO)
	if err != nil {
		seg.Image.ErrorCode.Store(uint32(image.ErrGPIOInitFailed))
		seg.Close()
		return nil, err
	}

	store := config.NewStore()
	if cfg.ConfigPath != "" || cfg.SystemConfigPath != "" || cfg.UserConfigPath != "" {
		if err := store.ReloadUserConfig(cfg.ConfigPath, cfg.SystemConfigPath, cfg.UserConfigPath); err != nil {
			seg.Image.ErrorCode.Store(uint32(image.ErrConfigParseError))
			driver.Close()
			seg.Close()
			return nil, err
		}
	}

	timers := timer.NewBank()
	counters := counter.NewBank()
	if err := timers.Sync(seg.Image, store.Timers()); err != nil {
		driver.Close()
		seg.Close()
		return nil, err
	}
	if err := counters.Sync(seg.Image, store.Counters()); err != nil {
		driver.Close()
		seg.Close()
		return nil, err
	}

	wdPeriod := cfg.WatchdogPeriod
	if wdPeriod == 0 {
		wdPeriod = watchdog.MinTimeout
	}
	wd := watchdog.New(wdPeriod)

	w := &Worker{
		cfg:      cfg,
		runID:    uuid.NewString(),
		seg:      seg,
		driver:   driver,
		store:    store,
		timers:   timers,
		counters: counters,
		wd:       wd,
	}

	wd.SetCallback(func() {
		seg.Image.ErrorCode.Store(uint32(image.ErrWatchdogTimeout))
		seg.Image.EStop.Store(true)
		seg.Image.CommitEmergencyOutputs()
		driver.EmergencyShutdown()
	})

	w.loop = scan.New(seg.Image, driver, store, timers, counters, wd, cfg.Log)

	addr := cfg.ModbusAddr
	if addr == "" {
		addr = ":502"
	}
	w.server = &modbus.Server{Img: seg.Image, UnitID: modbus.DefaultUnitID, Log: cfg.Log}

	return w, nil
}

// Run starts every goroutine and blocks until ctx is cancelled, then tears
// everything down in reverse order, finishing with a GPIO emergency
// shutdown (spec §7: "on any fatal path... the worker exits non-zero"
// after driving outputs safe).
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.Log != nil {
		w.cfg.Log.Printf("worker: starting run %s", w.runID)
	}

	w.wd.Start()
	defer w.wd.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.loop.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.indicatorLoop(ctx)
	}()

	var fsWatcher io.Closer
	if w.cfg.ConfigPath != "" || w.cfg.SystemConfigPath != "" || w.cfg.UserConfigPath != "" {
		cw, err := w.store.WatchUserConfig(w.cfg.ConfigPath, w.cfg.SystemConfigPath, w.cfg.UserConfigPath, w.cfg.Log)
		if err == nil {
			fsWatcher = cw
		} else if w.cfg.Log != nil {
			w.cfg.Log.Printf("worker: config watch disabled: %v", err)
		}
	}

	modbusAddr := w.cfg.ModbusAddr
	if modbusAddr == "" {
		modbusAddr = ":502"
	}
	modbusCtx, cancelModbus := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.server.ListenAndServe(modbusCtx, modbusAddr); err != nil && w.cfg.Log != nil {
			w.cfg.Log.Printf("worker: modbus: %v", err)
		}
	}()

	<-ctx.Done()
	cancelModbus()
	w.server.Close()
	if fsWatcher != nil {
		fsWatcher.Close()
	}

	wg.Wait()

	w.driver.Close()
	w.seg.Close()
	return nil
}

// heartbeatLoop increments the image's heartbeat cell once per second:
// the supervisor's stall detector watches this cell for 5 s of silence.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.seg.Image.Heartbeat.Add(1)
		}
	}
}

// indicatorLoop blinks the indicator line at the fast rate until the
// vision-ready bit M39 is set, then blinks at the slow rate (spec §4.4).
func (w *Worker) indicatorLoop(ctx context.Context) {
	if !w.driver.HasIndicator() {
		return
	}
	for {
		period := indicatorFastPeriod
		if w.seg.Image.Memory[image.MemYoloReadyBit].Load() {
			period = indicatorSlowPeriod
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
			w.driver.ToggleIndicator()
		}
	}
}
