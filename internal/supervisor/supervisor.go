package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenwick-automation/ladderd/internal/diag"
	"github.com/fenwick-automation/ladderd/internal/gpio"
	"github.com/fenwick-automation/ladderd/internal/image"
	"github.com/fenwick-automation/ladderd/internal/shm"
)

// HeartbeatTimeout is how long the image's heartbeat cell may go without
// incrementing before the supervisor kills the worker (spec §4.7: "5
// seconds").
const HeartbeatTimeout = 5 * time.Second

// livenessCheckInterval is the process-liveness cross-check cadence
// (spec-extension §4.10), independent of the heartbeat-stall bound above.
const livenessCheckInterval = 2 * time.Second

const livenessTolerance = 2 * time.Second

// Config describes how to spawn and supervise the worker.
type Config struct {
	ShmPath    string
	GPIO       gpio.Config
	WorkerArgs []string
}

// Supervisor owns the shared process image's lifetime and the worker
// child process (spec §4.7).
type Supervisor struct {
	cfg Config
	log *log.Logger

	seg     *shm.Segment
	process *Process
}

// New returns an idle Supervisor.
func New(cfg Config, logger *log.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, log: logger}
}

// Run creates the shared segment, spawns the worker, and blocks until the
// worker exits or ctx is cancelled (e.g. by an OS signal), performing
// emergency GPIO shutdown on every exit path.
func (s *Supervisor) Run(ctx context.Context) error {
	seg, err := shm.Create(s.cfg.ShmPath)
	if err != nil {
		if driver, derr := gpio.Open(s.cfg.GPIO); derr == nil {
			driver.EmergencyShutdown()
			driver.Close()
		}
		return fmt.Errorf("supervisor: create shared memory: %w", err)
	}
	s.seg = seg
	defer func() {
		seg.Close()
		shm.Destroy(s.cfg.ShmPath)
	}()

	s.process = NewProcess(s.log)
	env := append(os.Environ(), "LADDERD_SHM_PATH="+s.cfg.ShmPath)
	if err := s.process.Spawn(s.cfg.WorkerArgs, env); err != nil {
		s.emergencyShutdown(seg.Image)
		return fmt.Errorf("supervisor: spawn worker: %w", err)
	}
	startTime := s.process.StartTime
	pid := int32(s.process.PID())

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	go s.watchHeartbeat(watchCtx, seg.Image)
	go s.watchLiveness(watchCtx, pid, startTime)

	select {
	case <-sigCtx.Done():
		if s.log != nil {
			s.log.Printf("signal received, terminating worker")
		}
		s.process.Kill()
	case <-s.processExited():
	}

	s.process.Wait()
	cancelWatch()

	s.emergencyShutdown(seg.Image)
	return nil
}

func (s *Supervisor) processExited() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		s.process.Wait()
		close(ch)
	}()
	return ch
}

// watchHeartbeat polls the image's heartbeat cell and kills the worker if
// it stalls for HeartbeatTimeout (spec §4.7).
func (s *Supervisor) watchHeartbeat(ctx context.Context, img *image.Image) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastValue := img.Heartbeat.Load()
	lastChange := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.process.IsAlive() {
				return
			}
			v := img.Heartbeat.Load()
			if v != lastValue {
				lastValue = v
				lastChange = time.Now()
				continue
			}
			if time.Since(lastChange) >= HeartbeatTimeout {
				img.ErrorCode.Store(uint32(image.ErrWatchdogTimeout))
				if s.log != nil {
					s.log.Printf("worker heartbeat stalled for %s, killing", HeartbeatTimeout)
				}
				s.process.Kill()
				return
			}
		}
	}
}

// watchLiveness cross-checks the worker PID's liveness and start time
// against gopsutil every 2 s, independent of the heartbeat bound above:
// this catches a dead worker whose PID has already been recycled by an
// unrelated process, which the heartbeat check alone cannot (spec-
// extension §4.10). Neither check substitutes for the other.
func (s *Supervisor) watchLiveness(ctx context.Context, pid int32, startTime time.Time) {
	if pid == 0 {
		return
	}
	ticker := time.NewTicker(livenessCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.process.IsAlive() {
				return
			}
			if !diag.IsSameProcess(pid, startTime, livenessTolerance) {
				if s.log != nil {
					s.log.Printf("liveness cross-check failed for pid %d, killing", pid)
				}
				s.process.Kill()
				return
			}
		}
	}
}

// emergencyShutdown opens the GPIO driver and drives it to the safe state,
// run only after the worker has been reaped so the chardev lines it held
// are free (spec §4.7: "after the worker is reaped, regardless of whether
// termination was normal or forced").
func (s *Supervisor) emergencyShutdown(img *image.Image) {
	img.EStop.Store(true)
	img.CommitEmergencyOutputs()

	driver, err := gpio.Open(s.cfg.GPIO)
	if err != nil {
		if s.log != nil {
			s.log.Printf("emergency shutdown: open gpio: %v", err)
		}
		return
	}
	defer driver.Close()

	if err := driver.EmergencyShutdown(); err != nil && s.log != nil {
		s.log.Printf("emergency shutdown: %v", err)
	}
}
