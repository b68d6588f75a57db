package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/dgflow/pkg/pipeline/measure"
	"github.com/askiada/dgflow/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
}

func (pd *pipelineDrawer) New() error {
	pd.startTime = time.Now()

	return nil
}

// PrepareStep links every input of the instruction to every output, so
// that failed instructions still appear in the graph.
func (pd *pipelineDrawer) PrepareStep(step *model.StepInfo) error {
	for _, n := range append(append([]model.Node(nil), step.Inputs...), step.Outputs...) {
		err := pd.AddNode(n)
		if err != nil {
			return err
		}
	}
	for _, in := range step.Inputs {
		for _, out := range step.Outputs {
			err := pd.AddLink(in.ID(), out.ID(), step.Name())
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (pd *pipelineDrawer) OnStepOutput(step *model.StepInfo, computationDuration time.Duration) error {
	return nil
}

func (pd *pipelineDrawer) AfterStage(stage string, totalDuration time.Duration) error {
	return nil
}

func (pd *pipelineDrawer) Finish() error {
	if pd.m != nil {
		err := pd.SetTotalTime(time.Since(pd.startTime))
		if err != nil {
			return errors.Wrap(err, "unable to set total time")
		}
		err = pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the lineage of the run with drawer. A non nil
// measure adds timings to the graph.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{drawer, measure, time.Now()}
}
