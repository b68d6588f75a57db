package table

import "time"

// StepRecord is one provenance entry: the exact instruction that produced or
// mutated a table and the identity of the tool that ran it.
type StepRecord struct {
	Stage     string         `json:"stage"`
	Index     int            `json:"index"`
	Arguments map[string]any `json:"arguments"`
	Tool      string         `json:"tool"`
	Version   string         `json:"version"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
}
