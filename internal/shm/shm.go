// Package shm maps the process image onto POSIX shared memory so the
// supervisor, worker, and Modbus front-end processes observe the same
// cells (spec §9 Design Notes). Grounded on
// original_source/plc_cpp/include/shared_memory.h's SharedMemoryManager,
// which splits creation (ftruncate to size, then map) from attachment
// (map an already-sized segment) between the two sides of the process
// pair; golang.org/x/sys/unix stands in for the raw shm_open/mmap calls
// the C++ makes.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fenwick-automation/ladderd/internal/image"
)

// Segment is a memory-mapped region holding exactly one image.Image.
type Segment struct {
	data  []byte
	Image *image.Image
}

// Path returns the shared memory segment path for the given instance name,
// following spec-extension §6.6: /dev/shm/ladderd.<instance>.
func Path(instance string) string {
	if instance == "" {
		instance = "default"
	}
	return filepath.Join("/dev/shm", "ladderd."+instance)
}

const size = int(unsafe.Sizeof(image.Image{}))

// Create opens (creating if absent) and sizes the segment, then maps it.
// Only the supervisor calls Create; it owns the segment's lifetime.
func Create(path string) (*Segment, error) {
	fd, err := unix.Open(path, os.O_RDWR|os.O_CREATE, 0o660)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("shm: ftruncate %s to %d: %w", path, size, err)
	}

	return mapFd(fd, path)
}

// Attach opens an existing segment without creating or resizing it. The
// worker process calls this after the supervisor has created the segment.
func Attach(path string) (*Segment, error) {
	fd, err := unix.Open(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: attach %s: %w", path, err)
	}
	defer unix.Close(fd)

	return mapFd(fd, path)
}

func mapFd(fd int, path string) (*Segment, error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	img := (*image.Image)(unsafe.Pointer(&data[0]))
	return &Segment{data: data, Image: img}, nil
}

// Close unmaps the segment. It does not remove the backing file; call
// Destroy for that.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	s.Image = nil
	return err
}

// Destroy removes the backing file. Only the supervisor calls this, after
// the worker has exited, mirroring shared_memory.h's destructor-side
// shm_unlink.
func Destroy(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm: destroy %s: %w", path, err)
	}
	return nil
}
