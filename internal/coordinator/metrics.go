package coordinator

import (
	"sort"
	"sync"
	"time"

	"github.com/dshills/nvimbed/internal/event"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	topics map[event.Topic]*TopicStats

	totalDispatches uint64
	totalErrors     uint64
	totalPanics     uint64
	totalDuration   time.Duration
}

// TopicStats holds the statistics of one event topic.
type TopicStats struct {
	Topic         event.Topic
	DispatchCount uint64
	ErrorCount    uint64
	TotalDuration time.Duration
	MaxDuration   time.Duration
	LastError     string
	LastDispatch  time.Time
}

// AverageDuration returns the mean dispatch duration.
func (s TopicStats) AverageDuration() time.Duration {
	if s.DispatchCount == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.DispatchCount)
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{topics: make(map[event.Topic]*TopicStats)}
}

func (m *Metrics) stats(topic event.Topic) *TopicStats {
	s := m.topics[topic]
	if s == nil {
		s = &TopicStats{Topic: topic}
		m.topics[topic] = s
	}
	return s
}

// Record records one dispatch.
func (m *Metrics) Record(topic event.Topic, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += d

	s := m.stats(topic)
	s.DispatchCount++
	s.TotalDuration += d
	s.LastDispatch = time.Now()
	if d > s.MaxDuration {
		s.MaxDuration = d
	}
	if err != nil {
		m.totalErrors++
		s.ErrorCount++
		s.LastError = err.Error()
	}
}

// RecordPanic records a recovered panic.
func (m *Metrics) RecordPanic(topic event.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalPanics++
	m.stats(topic).ErrorCount++
}

// TotalDispatches returns the number of dispatched events.
func (m *Metrics) TotalDispatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches
}

// TotalErrors returns the number of dispatches that failed.
func (m *Metrics) TotalErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalErrors
}

// TotalPanics returns the number of recovered panics.
func (m *Metrics) TotalPanics() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalPanics
}

// AverageDuration returns the mean dispatch duration over all topics.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalDispatches == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalDispatches)
}

// Topic returns a copy of the statistics for topic.
func (m *Metrics) Topic(topic event.Topic) (TopicStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.topics[topic]
	if !ok {
		return TopicStats{}, false
	}
	return *s, true
}

// Snapshot returns the statistics of all topics, most dispatched first.
func (m *Metrics) Snapshot() []TopicStats {
	m.mu.RLock()
	out := make([]TopicStats, 0, len(m.topics))
	for _, s := range m.topics {
		out = append(out, *s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DispatchCount != out[j].DispatchCount {
			return out[i].DispatchCount > out[j].DispatchCount
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// Reset clears all statistics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topics = make(map[event.Topic]*TopicStats)
	m.totalDispatches = 0
	m.totalErrors = 0
	m.totalPanics = 0
	m.totalDuration = 0
}
