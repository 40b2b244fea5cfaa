package framebuf

import "errors"

// ErrUnavailable means the segment does not exist (yet). Callers retry later.
var ErrUnavailable = errors.New("shared frame segment unavailable")

// Name returns the segment name.
func (s *Segment) Name() string { return s.name }

// Bytes returns the mapped region. Read-only for segments obtained with Open.
func (s *Segment) Bytes() []byte { return s.data }
