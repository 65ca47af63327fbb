// Package cache provides an explicit invalidation signal for the
// inventory dataset. Readers remember the version they loaded at and
// refetch when it moves; every successful mutation bumps it.
package cache

import "sync/atomic"

// Signal is a monotonically increasing dataset version. The zero value
// is ready to use and a nil *Signal is safe to bump.
type Signal struct {
	version atomic.Uint64
}

// Bump advances the version. Called after every committed mutation.
func (s *Signal) Bump() {
	if s == nil {
		return
	}
	s.version.Add(1)
}

// Version returns the current dataset version.
func (s *Signal) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version.Load()
}

// Changed reports whether the dataset moved past a previously observed
// version.
func (s *Signal) Changed(since uint64) bool {
	return s.Version() != since
}
