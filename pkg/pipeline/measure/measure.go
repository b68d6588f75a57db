package measure

import (
	"sync"
	"time"
)

type DefaultMeasure struct {
	mu     sync.Mutex
	Steps  map[string]Metric
	stages map[string]time.Duration
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Steps:  make(map[string]Metric),
		stages: make(map[string]time.Duration),
	}
}

// AddMetric returns the metric of name, creating it when missing.
func (m *DefaultMeasure) AddMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mt, ok := m.Steps[name]; ok {
		return mt
	}
	mt := &DefaultMetric{
		mu:            &sync.Mutex{},
		allTransports: make(map[string]*TransportInfo),
	}
	m.Steps[name] = mt

	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Steps[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Metric, len(m.Steps))
	for k, v := range m.Steps {
		out[k] = v
	}

	return out
}

func (m *DefaultMeasure) SetStageDuration(stage string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage] = elapsed
}

func (m *DefaultMeasure) StageDurations() map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]time.Duration, len(m.stages))
	for k, v := range m.stages {
		out[k] = v
	}

	return out
}

var _ Measure = (*DefaultMeasure)(nil)
