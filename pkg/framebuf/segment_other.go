//go:build !unix

package framebuf

import "fmt"

// Segment is unavailable on this platform; the controller simply never gets frames.
type Segment struct {
	name string
	data []byte
}

func Create(name string) (*Segment, error) {
	return nil, fmt.Errorf("%w: shared memory not supported on this platform", ErrUnavailable)
}

func Open(name string) (*Segment, error) {
	return nil, fmt.Errorf("%w: shared memory not supported on this platform", ErrUnavailable)
}

func (s *Segment) Close() error  { return nil }
func (s *Segment) Unlink() error { return nil }
