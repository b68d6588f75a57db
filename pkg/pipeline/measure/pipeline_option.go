package measure

import (
	"time"

	"github.com/askiada/dgflow/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
	startTime time.Time
}

func (pm *pipelineMeasure) New() error {
	pm.startTime = time.Now()

	return nil
}

func (pm *pipelineMeasure) PrepareStep(step *model.StepInfo) error {
	for _, out := range step.Outputs {
		pm.AddMetric(out.ID())
	}

	return nil
}

// OnStepOutput charges the instruction duration to every node it wrote,
// once per input it read. The total duration of a node is the run time
// when it was last written.
func (pm *pipelineMeasure) OnStepOutput(step *model.StepInfo, computationDuration time.Duration) error {
	for _, out := range step.Outputs {
		mt := pm.AddMetric(out.ID())
		mt.AddDuration(computationDuration)
		mt.SetTotalDuration(time.Since(pm.startTime))
		for _, in := range step.Inputs {
			mt.AddTransportDuration(in.ID(), computationDuration)
		}
	}

	return nil
}

func (pm *pipelineMeasure) AfterStage(stage string, totalDuration time.Duration) error {
	pm.SetStageDuration(stage, totalDuration)

	return nil
}

func (pm *pipelineMeasure) Finish() error {
	return nil
}

// PipelineMeasure records instruction and stage durations into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{Measure: measure, startTime: time.Now()}
}
