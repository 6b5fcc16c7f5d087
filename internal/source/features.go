package source

import (
	"math"
	"sync"
	"time"
)

// Features is a Source backed by named feature slots. The vector layout
// is fixed at construction by the ordered slot names; a slot that has
// never been set, or has been cleared, reads as 0.0. Set and Clear may
// be called concurrently with Snapshot.
type Features struct {
	names []string
	index map[string]int

	mu     sync.RWMutex
	values map[string]float64
}

// NewFeatures creates a provider whose Snapshot returns one value per
// name, in the given order.
func NewFeatures(names []string) *Features {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &Features{
		names:  names,
		index:  index,
		values: make(map[string]float64, len(names)),
	}
}

// Set stores the current value for a named feature. Unknown names are
// ignored.
func (f *Features) Set(name string, value float64) {
	if _, ok := f.index[name]; !ok {
		return
	}
	f.mu.Lock()
	f.values[name] = value
	f.mu.Unlock()
}

// Clear marks a feature as unavailable; it reads as 0.0 until set again.
func (f *Features) Clear(name string) {
	f.mu.Lock()
	delete(f.values, name)
	f.mu.Unlock()
}

// Len returns the vector length.
func (f *Features) Len() int {
	return len(f.names)
}

// Snapshot implements Source. Absent features map to 0.0.
func (f *Features) Snapshot() []float64 {
	vec := make([]float64, len(f.names))
	f.mu.RLock()
	for i, name := range f.names {
		if v, ok := f.values[name]; ok {
			vec[i] = v
		}
	}
	f.mu.RUnlock()
	return vec
}

// Oscillator returns a synthetic source for demos and manual testing:
// a vector of n phase-shifted sine values evolving in real time.
func Oscillator(n int, period time.Duration) Source {
	start := time.Now()
	return Func(func() []float64 {
		t := time.Since(start).Seconds() / period.Seconds()
		vec := make([]float64, n)
		for i := range vec {
			vec[i] = math.Sin(2*math.Pi*t + float64(i))
		}
		return vec
	})
}
