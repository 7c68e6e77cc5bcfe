package sync

import "sync/atomic"

// Suppressor is the handle that stops native event intake while the engine
// makes its own structural changes. Holds nest; intake resumes once every
// hold is released.
type Suppressor struct {
	holds atomic.Int32
}

// Hold suppresses intake until the returned release func is called. Calling
// release more than once has no further effect.
func (s *Suppressor) Hold() (release func()) {
	s.holds.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			s.holds.Add(-1)
		}
	}
}

// Active reports whether intake is currently suppressed.
func (s *Suppressor) Active() bool {
	return s.holds.Load() > 0
}
