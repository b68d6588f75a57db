package pipeline

import (
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/pipeline/model"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/units"
)

// Option configures a Pipeline.
type Option func(p *Pipeline)

// WithLogger sets the logger passed down to every stage.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithParallel evaluates up to n bindings of a transform step concurrently.
func WithParallel(n int) Option {
	return func(p *Pipeline) {
		p.parallel = n
	}
}

// WithHooks attaches instrumentation options to the run.
func WithHooks(hooks ...model.PipelineOption) Option {
	return func(p *Pipeline) {
		p.hooks = append(p.hooks, hooks...)
	}
}

// WithUnits sets the unit registry shared by every stage.
func WithUnits(reg *units.Registry) Option {
	return func(p *Pipeline) {
		p.units = reg
	}
}

// WithTransforms replaces the builtin transform registry.
func WithTransforms(reg *transform.Registry) Option {
	return func(p *Pipeline) {
		p.transforms = reg
	}
}

// WithBaseDir resolves relative load and save paths against dir.
func WithBaseDir(dir string) Option {
	return func(p *Pipeline) {
		p.baseDir = dir
	}
}

// WithRunID sets the run identifier written to provenance records.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}
