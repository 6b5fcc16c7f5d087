// Package source defines the boundary to the sensor providing feature
// snapshots. The real provider lives outside this module; this package
// holds the pull interface plus helpers for wiring one up.
package source

// Source produces the current feature vector on demand. Implementations
// must not fail: a feature that cannot be read maps to the neutral
// default 0.0. Snapshot is called once per tick from the streaming loop
// and must be safe for that single-caller pattern.
type Source interface {
	Snapshot() []float64
}

// Func adapts a plain function to the Source interface.
type Func func() []float64

// Snapshot implements Source.
func (f Func) Snapshot() []float64 {
	return f()
}
