package zigzag

import (
	"sync"
	"time"
)

// TimePoint is one sample of a named counter, adapted from the
// teacher's metrics time series (pkg/server/server.go) for use as a
// bound-by-bound progress log instead of an HTTP request log.
type TimePoint struct {
	Time    time.Time
	Counter string
	Value   int64
}

// Stats tracks run-scoped counters (the engine records bounds
// extended and solver calls) the same way the teacher's Server tracks request
// counters: a name-keyed int64 map plus a capped time series.
type Stats struct {
	mu         sync.RWMutex
	counters   map[string]int64
	timeSeries []TimePoint
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{counters: make(map[string]int64)}
}

func (s *Stats) inc(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	s.timeSeries = append(s.timeSeries, TimePoint{Time: time.Now(), Counter: name, Value: s.counters[name]})
	if len(s.timeSeries) > 1000 {
		s.timeSeries = s.timeSeries[len(s.timeSeries)-1000:]
	}
}

// Counters returns a snapshot copy of the current counter values.
func (s *Stats) Counters() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// TimeSeries returns a snapshot copy of the recorded samples.
func (s *Stats) TimeSeries() []TimePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TimePoint, len(s.timeSeries))
	copy(out, s.timeSeries)
	return out
}
