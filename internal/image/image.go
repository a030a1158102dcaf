// Package image implements the process image: the fixed-layout block of
// atomically addressable cells shared between the supervisor, the worker's
// scan loop, and the Modbus front-end.
//
// Every cell is an independent atomic field. There is no whole-image lock
// and no cross-cell ordering guarantee, callers that need "all of these
// cells from the same cycle" rely on the scan loop's own internal
// sequencing (see internal/scan), not on anything this package provides.
package image

import (
	"math"
	"sync/atomic"
)

// Fixed sizing (hard limits). These never change at runtime.
const (
	NumInputs   = 3
	NumOutputs  = 6
	NumMemory   = 52
	NumYolo     = 10
	NumTimers   = 10
	NumCounters = 10
)

// Memory-bit regions within Memory[0..51].
const (
	MemUserBitsStart   = 0
	MemUserBitsEnd     = 38 // inclusive
	MemYoloReadyBit    = 39
	MemYoloStatusStart = 40
	MemYoloStatusEnd   = 45 // inclusive
	MemOutputMirrStart = 46
	MemOutputMirrEnd   = 51 // inclusive
)

// ErrorCode is the stable numeric code latched into the image's error cell.
type ErrorCode uint32

const (
	ErrNone ErrorCode = iota
	ErrGPIOInitFailed
	ErrGPIOReadTimeout
	ErrSHMAccessFailed
	ErrConfigParseError
	ErrModbusInitFailed
	ErrScanTimeout
	ErrWatchdogTimeout
	ErrEmergencyStop
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNone:
		return "NONE"
	case ErrGPIOInitFailed:
		return "GPIO_INIT_FAILED"
	case ErrGPIOReadTimeout:
		return "GPIO_READ_TIMEOUT"
	case ErrSHMAccessFailed:
		return "SHM_ACCESS_FAILED"
	case ErrConfigParseError:
		return "CONFIG_PARSE_ERROR"
	case ErrModbusInitFailed:
		return "MODBUS_INIT_FAILED"
	case ErrScanTimeout:
		return "SCAN_TIMEOUT"
	case ErrWatchdogTimeout:
		return "WATCHDOG_TIMEOUT"
	case ErrEmergencyStop:
		return "EMERGENCY_STOP"
	default:
		return "UNKNOWN"
	}
}

// TimerSlot is the external-visibility projection of one timer bank entry.
type TimerSlot struct {
	Running atomic.Bool
	Done    atomic.Bool
	Elapsed atomic.Uint64 // float64 bits, seconds
	Preset  atomic.Uint64 // float64 bits, seconds
}

// CounterSlot is the external-visibility projection of one counter bank entry.
type CounterSlot struct {
	Done   atomic.Bool
	Count  atomic.Int32
	Preset atomic.Int32
}

// Image is the contiguous process-image block. It is plain-old-data: every
// field is independently atomic, and the whole struct is suitable for
// placement directly on top of a shared-memory mapping (see internal/shm).
type Image struct {
	Inputs     [NumInputs]atomic.Bool
	Outputs    [NumOutputs]atomic.Bool
	Memory     [NumMemory]atomic.Bool
	YoloFlags  [NumYolo]atomic.Bool
	Timers     [NumTimers]TimerSlot
	Counters   [NumCounters]CounterSlot
	ScanCount  atomic.Uint64
	ScanTimeUs atomic.Uint64 // float64 bits, microseconds
	ErrorCode  atomic.Uint32
	Heartbeat  atomic.Uint32
	EStop      atomic.Bool
}

// New returns a zero-valued, heap-allocated image, as used by unit tests; in
// production the supervisor places an Image at the base of the mmap'd
// segment instead (internal/shm), and a worker that cannot attach to that
// segment fails to start.
func New() *Image {
	return &Image{}
}

// --- float64-via-atomic.Uint64 helpers ---

func loadFloat(cell *atomic.Uint64) float64     { return math.Float64frombits(cell.Load()) }
func storeFloat(cell *atomic.Uint64, v float64) { cell.Store(math.Float64bits(v)) }

// SetOutput writes Outputs[i] and mirrors it into Memory[46+i], preserving
// the invariant in spec §3.2: Memory[46+i] == Outputs[i] at every cycle
// boundary.
func (im *Image) SetOutput(i int, v bool) {
	im.Outputs[i].Store(v)
	im.Memory[MemOutputMirrStart+i].Store(v)
}

// SyncOutputMirror re-asserts Memory[46..51] from the current Outputs, for
// use after any path that may have written Outputs without going through
// SetOutput (e.g. the evaluator, which writes Outputs directly so that a
// cycle's multiple rungs can both touch the same coil before the mirror is
// published once at commit time).
func (im *Image) SyncOutputMirror() {
	for i := 0; i < NumOutputs; i++ {
		im.Memory[MemOutputMirrStart+i].Store(im.Outputs[i].Load())
	}
}

// SetYoloFlag writes YoloFlags[k] and mirrors it into Memory[40+k], per the
// permissive reading of spec §9's open question: both routes refresh both
// cells.
func (im *Image) SetYoloFlag(k int, v bool) {
	im.YoloFlags[k].Store(v)
	im.Memory[MemYoloStatusStart+k].Store(v)
}

// ClearYoloReady clears the M39 heartbeat bit the scan loop uses to force
// the external vision process to re-heartbeat every 15s (spec §4.2 step 7).
func (im *Image) ClearYoloReady() {
	im.Memory[MemYoloReadyBit].Store(false)
}

// CommitEmergencyOutputs drives every output to false when the emergency
// latch is set, before any GPIO commit (spec §3.2's emergency invariant).
func (im *Image) CommitEmergencyOutputs() {
	if !im.EStop.Load() {
		return
	}
	for i := 0; i < NumOutputs; i++ {
		im.SetOutput(i, false)
	}
}

// ScanTime returns the last recorded cycle time in microseconds.
func (im *Image) ScanTime() float64 { return loadFloat(&im.ScanTimeUs) }

// SetScanTime records the cycle time in microseconds.
func (im *Image) SetScanTime(us float64) { storeFloat(&im.ScanTimeUs, us) }

// SetElapsed/GetElapsed/SetPreset/GetPreset are read/write helpers so callers outside this
// package never touch the bit representation directly.
func (s *TimerSlot) SetElapsed(v float64) { storeFloat(&s.Elapsed, v) }
func (s *TimerSlot) GetElapsed() float64  { return loadFloat(&s.Elapsed) }
func (s *TimerSlot) SetPreset(v float64)  { storeFloat(&s.Preset, v) }
func (s *TimerSlot) GetPreset() float64   { return loadFloat(&s.Preset) }
