// Package vision is the client side of the shared-memory mailbox the
// runtime uses to coordinate with an external vision process (spec §1,
// §4.9-equivalent API in §5 "set_yolo_flag"). The mailbox itself is the
// process image's yolo_flags/M39/M40-45 cells. This package is the
// narrow, validated API surface onto those cells that spec §5 names.
package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/fenwick-automation/ladderd/internal/image"
)

// pollInterval bounds how often WaitReady re-checks the ready bit.
const pollInterval = 10 * time.Millisecond

// Mailbox wraps a process image with the vision-facing API from spec §5.
type Mailbox struct {
	img *image.Image
}

// New returns a Mailbox over img.
func New(img *image.Image) *Mailbox {
	return &Mailbox{img: img}
}

// SetFlag updates yolo_flags[level-1] and memory[40+level-1] (spec §5:
// "fails if level out of range"). level is one-based, 1..10.
func (m *Mailbox) SetFlag(level int, value bool) error {
	if level < 1 || level > image.NumYolo {
		return fmt.Errorf("vision: level %d out of range [1,%d]", level, image.NumYolo)
	}
	m.img.SetYoloFlag(level-1, value)
	return nil
}

// Flags returns a snapshot of all ten YOLO flags, one-based level order
// (Flags()[0] is level 1).
func (m *Mailbox) Flags() [image.NumYolo]bool {
	var out [image.NumYolo]bool
	for i := range out {
		out[i] = m.img.YoloFlags[i].Load()
	}
	return out
}

// WaitReady blocks until the M39 ready bit (memory[39]) is observed set, or
// ctx is cancelled. It returns at once if the bit is already set; it does
// not wait for the scan loop's 15 s clear (spec §4.2 step 7) to happen
// first.
func (m *Mailbox) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if m.img.Memory[image.MemYoloReadyBit].Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SetReady sets the M39 ready bit, called by the vision process itself
// after it has refreshed its YOLO flags for the current cycle.
func (m *Mailbox) SetReady() {
	m.img.Memory[image.MemYoloReadyBit].Store(true)
}
