package measure

import "time"

// Measure collects durations per lineage node and per stage.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
	SetStageDuration(stage string, elapsed time.Duration)
	StageDurations() map[string]time.Duration
}

// Metric collects the durations of the instructions producing one node.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddTransportDuration(inputName string, elapsed time.Duration)
	AVGDuration() time.Duration
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
	AllTransports() map[string]*TransportInfo
}
