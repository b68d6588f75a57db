package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/pkg/extract"
	"github.com/askiada/dgflow/pkg/pipeline/model"
	"github.com/askiada/dgflow/pkg/plot"
	"github.com/askiada/dgflow/pkg/recipe"
	"github.com/askiada/dgflow/pkg/source"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/tableio"
	"github.com/askiada/dgflow/pkg/transform"
	"github.com/askiada/dgflow/pkg/transform/builtin"
	"github.com/askiada/dgflow/pkg/units"
)

// States of a run besides the stage names.
const (
	StatePending = "pending"
	StateDone    = "done"
)

// Pipeline runs one recipe.
type Pipeline struct {
	recipe     *recipe.Recipe
	units      *units.Registry
	transforms *transform.Registry
	hooks      []model.PipelineOption
	logger     *zap.Logger
	parallel   int
	baseDir    string
	runID      string

	extractor  *extract.Extractor
	dispatcher *transform.Dispatcher
	codec      *tableio.Codec
	plotter    *plot.Plotter

	mu        sync.RWMutex
	state     string
	datagrams map[string]*source.Datagram
	tables    map[string]*table.Table
}

// New validates rcp and prepares a run. The hooks are initialised here.
func New(rcp *recipe.Recipe, opts ...Option) (*Pipeline, error) {
	if rcp == nil {
		return nil, ErrRecipeMustBeSet
	}
	if err := rcp.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid recipe")
	}

	pipe := &Pipeline{
		recipe:    rcp,
		logger:    zap.NewNop(),
		parallel:  1,
		state:     StatePending,
		datagrams: make(map[string]*source.Datagram),
		tables:    make(map[string]*table.Table),
	}
	for _, opt := range opts {
		opt(pipe)
	}
	if pipe.units == nil {
		pipe.units = units.NewRegistry()
	}
	if pipe.transforms == nil {
		pipe.transforms = transform.NewRegistry()
		if err := builtin.Register(pipe.transforms); err != nil {
			return nil, errors.Wrap(err, "unable to register builtin transforms")
		}
	}
	if pipe.runID == "" {
		pipe.runID = uuid.NewString()
	}

	pipe.extractor = extract.New(pipe.units, extract.WithLogger(pipe.logger.Named("extract")))
	pipe.dispatcher = transform.NewDispatcher(pipe.units, pipe.transforms,
		transform.DispatcherParallel(pipe.parallel),
		transform.DispatcherLogger(pipe.logger.Named("transform")),
	)
	pipe.codec = tableio.New(pipe.units, tableio.WithLogger(pipe.logger.Named("tableio")))
	pipe.plotter = plot.New(pipe.units, plot.WithLogger(pipe.logger.Named("plot")))

	for _, hook := range pipe.hooks {
		err := hook.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// RunID identifies the run in provenance records.
func (p *Pipeline) RunID() string {
	return p.runID
}

// State returns the stage being executed, StatePending before Run and
// StateDone after a successful run. A failed run keeps the failing stage.
func (p *Pipeline) State() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.state
}

// Table returns the table called name.
func (p *Pipeline) Table(name string) (*table.Table, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tables[name]

	return t, ok
}

// Tables returns the names of the tables produced so far.
func (p *Pipeline) Tables() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.tables))
	for name := range p.tables {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// Datagram returns the datagram loaded as name.
func (p *Pipeline) Datagram(name string) (*source.Datagram, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.datagrams[name]

	return d, ok
}

// Run executes the recipe and waits for it to finish.
func (p *Pipeline) Run(ctx context.Context) error {
	for _, st := range p.stages() {
		if len(st.steps) == 0 {
			continue
		}
		p.setState(st.name)
		p.logger.Debug("stage started", zap.String("stage", st.name), zap.Int("instructions", len(st.steps)))

		start := time.Now()
		for _, step := range st.steps {
			if err := ctx.Err(); err != nil {
				return &StageError{Stage: st.name, Index: step.index, Err: errors.Wrap(err, "run interrupted")}
			}
			if err := p.runStep(ctx, st.name, step); err != nil {
				return err
			}
		}

		elapsed := time.Since(start)
		for _, hook := range p.hooks {
			err := hook.AfterStage(st.name, elapsed)
			if err != nil {
				return errors.Wrap(err, "unable to apply pipeline option")
			}
		}
		p.logger.Info("stage done", zap.String("stage", st.name), zap.Duration("elapsed", elapsed))
	}
	p.setState(StateDone)

	return p.finishRun()
}

func (p *Pipeline) runStep(ctx context.Context, stage string, step instruction) error {
	info := step.describe()
	info.Stage = stage
	info.Index = step.index
	logger := p.logger.With(zap.String("step", info.Name()))

	for _, hook := range p.hooks {
		err := hook.PrepareStep(info)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	start := time.Now()
	err := step.exec(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("instruction failed", zap.Error(err))

		return &StageError{Stage: stage, Index: step.index, Err: err}
	}
	logger.Debug("instruction done", zap.Duration("elapsed", elapsed))

	for _, hook := range p.hooks {
		err := hook.OnStepOutput(info, elapsed)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return nil
}

func (p *Pipeline) finishRun() error {
	for _, hook := range p.hooks {
		err := hook.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}

func (p *Pipeline) setState(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Pipeline) path(name string) string {
	if p.baseDir == "" || filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(p.baseDir, name)
}

func (p *Pipeline) setTable(t *table.Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.datagrams, t.Name)
	p.tables[t.Name] = t
}

func (p *Pipeline) setDatagram(name string, d *source.Datagram) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tables, name)
	p.datagrams[name] = d
}

// lookupTable returns the table called name, failing for datagrams and
// unknown names.
func (p *Pipeline) lookupTable(name string) (*table.Table, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.tables[name]; ok {
		return t, nil
	}
	if _, ok := p.datagrams[name]; ok {
		return nil, errors.Wrapf(ErrNotTable, "%q", name)
	}

	return nil, errors.Wrapf(ErrUnknownObject, "%q", name)
}

// lookupSource returns the datagram or table called name as a source.
func (p *Pipeline) lookupSource(name string) (source.Source, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if d, ok := p.datagrams[name]; ok {
		return d, nil
	}
	if t, ok := p.tables[name]; ok {
		return source.FromTable(t), nil
	}

	return nil, errors.Wrapf(ErrUnknownObject, "%q", name)
}

// node returns the lineage node of the object called name.
func (p *Pipeline) node(name string) model.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.datagrams[name]; ok {
		return model.Node{Kind: model.DatagramNode, Name: name}
	}

	return model.Node{Kind: model.TableNode, Name: name}
}
