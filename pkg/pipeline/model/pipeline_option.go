package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error
	// PrepareStep runs before the instruction is executed.
	PrepareStep(step *StepInfo) error
	// OnStepOutput runs after the instruction succeeded.
	OnStepOutput(step *StepInfo, computationDuration time.Duration) error
	// AfterStage runs once every instruction of a stage succeeded.
	AfterStage(stage string, totalDuration time.Duration) error
	// Finish runs after the pipeline is finished.
	Finish() error
}
