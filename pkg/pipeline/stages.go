package pipeline

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/dgflow/internal/buildinfo"
	"github.com/askiada/dgflow/pkg/pipeline/model"
	"github.com/askiada/dgflow/pkg/pivot"
	"github.com/askiada/dgflow/pkg/recipe"
	"github.com/askiada/dgflow/pkg/source"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/tableio"
	"github.com/askiada/dgflow/pkg/transform"
)

type instruction struct {
	index    int
	describe func() *model.StepInfo
	exec     func(ctx context.Context) error
}

type stage struct {
	name  string
	steps []instruction
}

func (p *Pipeline) stages() []stage {
	r := p.recipe
	load := stage{name: recipe.StageLoad}
	for i, l := range r.Load {
		load.steps = append(load.steps, p.loadStep(i, l))
	}
	ext := stage{name: recipe.StageExtract}
	for i, e := range r.Extract {
		ext.steps = append(ext.steps, p.extractStep(i, e))
	}
	piv := stage{name: recipe.StagePivot}
	for i, pv := range r.Pivot {
		piv.steps = append(piv.steps, p.pivotStep(i, pv))
	}
	tr := stage{name: recipe.StageTransform}
	for i, t := range r.Transform {
		tr.steps = append(tr.steps, p.transformStep(i, t))
	}
	plt := stage{name: recipe.StagePlot}
	for i, pl := range r.Plot {
		plt.steps = append(plt.steps, p.plotStep(i, pl))
	}
	save := stage{name: recipe.StageSave}
	for i, s := range r.Save {
		save.steps = append(save.steps, p.saveStep(i, s))
	}

	return []stage{load, ext, piv, tr, plt, save}
}

func fileNode(path string) model.Node {
	return model.Node{Kind: model.FileNode, Name: path}
}

func tableNode(name string) model.Node {
	return model.Node{Kind: model.TableNode, Name: name}
}

func (p *Pipeline) loadStep(i int, l recipe.Load) instruction {
	return instruction{
		index: i,
		describe: func() *model.StepInfo {
			out := model.Node{Kind: model.DatagramNode, Name: l.As}
			if l.Kind() == recipe.TypeTable {
				out.Kind = model.TableNode
			}

			return &model.StepInfo{Inputs: []model.Node{fileNode(l.Path)}, Outputs: []model.Node{out}}
		},
		exec: func(context.Context) error {
			path := p.path(l.Path)
			if l.Kind() == recipe.TypeTable {
				t, err := p.codec.Load(path, l.As)
				if err != nil {
					return err
				}
				if err := p.record(t, recipe.StageLoad, i, l); err != nil {
					return err
				}
				p.setTable(t)

				return nil
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrap(err, "unable to read datagram")
			}
			if l.Checked() {
				if err := source.CheckDatagram(raw); err != nil {
					return errors.Wrapf(err, "%q", path)
				}
			}
			dg, err := source.ReadDatagram(bytes.NewReader(raw))
			if err != nil {
				return errors.Wrapf(err, "%q", path)
			}
			p.setDatagram(l.As, dg)

			return nil
		},
	}
}

func (p *Pipeline) extractStep(i int, e recipe.Extract) instruction {
	return instruction{
		index: i,
		describe: func() *model.StepInfo {
			info := &model.StepInfo{Outputs: []model.Node{tableNode(e.Into)}}
			if e.From != "" {
				info.Inputs = append(info.Inputs, p.node(e.From))
			}
			if _, ok := p.Table(e.Into); ok && e.From != e.Into {
				info.Inputs = append(info.Inputs, tableNode(e.Into))
			}

			return info
		},
		exec: func(context.Context) error {
			var src source.Source
			if e.From != "" {
				var err error
				src, err = p.lookupSource(e.From)
				if err != nil {
					return err
				}
			}
			dst, ok := p.Table(e.Into)
			if !ok {
				dst = table.New(e.Into)
			}
			if err := p.extractor.Extract(src, dst, e.Spec()); err != nil {
				return err
			}
			if err := p.record(dst, recipe.StageExtract, i, e); err != nil {
				return err
			}
			p.setTable(dst)

			return nil
		},
	}
}

func (p *Pipeline) pivotStep(i int, pv recipe.Pivot) instruction {
	return instruction{
		index: i,
		describe: func() *model.StepInfo {
			return &model.StepInfo{Inputs: []model.Node{tableNode(pv.Table)}, Outputs: []model.Node{tableNode(pv.As)}}
		},
		exec: func(context.Context) error {
			src, err := p.lookupTable(pv.Table)
			if err != nil {
				return err
			}
			out, err := pivot.Pivot(src, pv.As, pv.Spec())
			if err != nil {
				return err
			}
			if err := p.record(out, recipe.StagePivot, i, pv); err != nil {
				return err
			}
			p.setTable(out)

			return nil
		},
	}
}

func (p *Pipeline) transformStep(i int, tr recipe.Transform) instruction {
	return instruction{
		index: i,
		describe: func() *model.StepInfo {
			return &model.StepInfo{Inputs: []model.Node{tableNode(tr.Table)}, Outputs: []model.Node{tableNode(tr.Table)}}
		},
		exec: func(ctx context.Context) error {
			t, err := p.lookupTable(tr.Table)
			if err != nil {
				return err
			}
			if err := p.dispatcher.Apply(ctx, t, i, tr.With, tr.Bindings()); err != nil {
				// bindings before the failing one were written and keep their record
				var terr *transform.TransformError
				if errors.As(err, &terr) && terr.Binding > 0 {
					done := tr
					done.Using = tr.Using[:terr.Binding]
					if rerr := p.record(t, recipe.StageTransform, i, done); rerr != nil {
						return rerr
					}
				}

				return err
			}

			return p.record(t, recipe.StageTransform, i, tr)
		},
	}
}

func (p *Pipeline) plotStep(i int, pl recipe.Plot) instruction {
	return instruction{
		index: i,
		describe: func() *model.StepInfo {
			info := &model.StepInfo{Inputs: []model.Node{tableNode(pl.Table)}}
			if pl.Save != nil {
				info.Outputs = []model.Node{fileNode(pl.Save.As)}
			}

			return info
		},
		exec: func(context.Context) error {
			t, err := p.lookupTable(pl.Table)
			if err != nil {
				return err
			}
			fig := pl.Figure()
			if pl.Save == nil {
				_, err = p.plotter.Render(t, fig)
			} else {
				err = p.plotter.Save(p.path(pl.Save.As), t, fig)
			}
			if err != nil {
				return err
			}

			return p.record(t, recipe.StagePlot, i, pl)
		},
	}
}

func (p *Pipeline) saveStep(i int, s recipe.Save) instruction {
	return instruction{
		index: i,
		describe: func() *model.StepInfo {
			return &model.StepInfo{Inputs: []model.Node{tableNode(s.Table)}, Outputs: []model.Node{fileNode(s.As)}}
		},
		exec: func(context.Context) error {
			t, err := p.lookupTable(s.Table)
			if err != nil {
				return err
			}
			format, err := s.Format()
			if err != nil {
				return err
			}
			// the saved file carries its own save record
			rec, err := p.stepRecord(recipe.StageSave, i, s)
			if err != nil {
				return err
			}
			out := t.Clone(t.Name)
			out.Record(rec)
			if err := p.codec.Save(p.path(s.As), out, tableio.SaveOptions{
				Format:  format,
				Columns: s.Columns,
				Policy:  s.Policy(),
			}); err != nil {
				return err
			}
			t.Record(rec)

			return nil
		},
	}
}

// record appends the instruction to the provenance log of t.
func (p *Pipeline) record(t *table.Table, stage string, index int, entry any) error {
	rec, err := p.stepRecord(stage, index, entry)
	if err != nil {
		return err
	}
	t.Record(rec)

	return nil
}

// stepRecord describes one executed instruction. The arguments are the
// instruction as written in the recipe.
func (p *Pipeline) stepRecord(stage string, index int, entry any) (table.StepRecord, error) {
	args, err := arguments(entry)
	if err != nil {
		return table.StepRecord{}, err
	}

	return table.StepRecord{
		Stage:     stage,
		Index:     index,
		Arguments: args,
		Tool:      buildinfo.Tool,
		Version:   buildinfo.ModuleVersion(),
		RunID:     p.runID,
		Timestamp: time.Now().UTC(),
	}, nil
}

func arguments(entry any) (map[string]any, error) {
	raw, err := yaml.Marshal(entry)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode instruction")
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "unable to decode instruction")
	}

	return out, nil
}
