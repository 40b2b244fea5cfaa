//go:build unix

package framebuf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Dir holds the segment files. /dev/shm keeps them in memory on Linux; other
// systems fall back to the temp dir, which still gives a shared mapping.
var Dir = defaultDir()

func defaultDir() string {
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Segment is a mapped shared memory region.
type Segment struct {
	name     string
	path     string
	f        *os.File
	data     []byte
	writable bool
}

func segmentPath(name string) string { return filepath.Join(Dir, name) }

// Create makes a fresh zero-filled segment of Capacity bytes, unlinking any stale
// segment with the same name first so no frame from an earlier session survives.
func Create(name string) (*Segment, error) {
	path := segmentPath(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("shm unlink stale %s: %w", name, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm create %s: %w", name, err)
	}
	if err := f.Truncate(Capacity); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shm size %s: %w", name, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, Capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shm mmap %s: %w", name, err)
	}
	clear(data)
	return &Segment{name: name, path: path, f: f, data: data, writable: true}, nil
}

// Open maps an existing segment read-only. It fails with ErrUnavailable while the
// renderer has not created it yet.
func Open(name string) (*Segment, error) {
	path := segmentPath(name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
		}
		return nil, fmt.Errorf("shm open %s: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm stat %s: %w", name, err)
	}
	size := int(st.Size())
	if size < HeaderSize {
		// Created but not sized yet.
		f.Close()
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrUnavailable, name, size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm mmap %s: %w", name, err)
	}
	return &Segment{name: name, path: path, f: f, data: data}, nil
}

// Close unmaps the segment. The segment itself stays until Unlink.
func (s *Segment) Close() error {
	if s == nil || s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Unlink removes the segment name so later Open calls fail.
func (s *Segment) Unlink() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
