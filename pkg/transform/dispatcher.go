package transform

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/dgflow/pkg/quantity"
	"github.com/askiada/dgflow/pkg/table"
	"github.com/askiada/dgflow/pkg/units"
)

// Binding maps parameter names to column names, namespace names or literals.
// Entries that are not parameters are passed to the transform as options.
type Binding map[string]any

// Dispatcher applies transforms to tables.
type Dispatcher struct {
	units      *units.Registry
	transforms *Registry
	parallel   int
	logger     *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(d *Dispatcher)

// DispatcherParallel evaluates up to n bindings of one step concurrently.
// Bindings are then resolved against the table as it was before the step,
// and results are applied in binding order.
func DispatcherParallel(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.parallel = n
	}
}

// DispatcherLogger sets the logger.
func DispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher returns a dispatcher over the given registries.
func NewDispatcher(reg *units.Registry, transforms *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{units: reg, transforms: transforms, parallel: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Apply runs the transform ref once per binding against t. step is the
// position of the instruction in the recipe, used in errors. On failure the
// columns of the failing binding are not written; those of earlier bindings
// remain.
func (d *Dispatcher) Apply(ctx context.Context, t *table.Table, step int, ref string, bindings []Binding) error {
	if d.units == nil {
		return units.ErrRegistryRequired
	}
	tr, err := d.transforms.Lookup(ref)
	if err != nil {
		return &TransformError{Transform: ref, Step: step, Binding: -1, Err: err}
	}

	if d.parallel <= 1 || len(bindings) < 2 {
		for i, b := range bindings {
			cols, err := d.evaluate(ctx, t, tr, b)
			if err != nil {
				return d.fail(tr, step, i, err)
			}
			if err := write(t, cols); err != nil {
				return d.fail(tr, step, i, err)
			}
		}

		return nil
	}

	results := make([][]*table.Column, len(bindings))
	failures := make([]error, len(bindings))
	grp := new(errgroup.Group)
	grp.SetLimit(d.parallel)
	for i, b := range bindings {
		i, b := i, b
		grp.Go(func() error {
			results[i], failures[i] = d.evaluate(ctx, t, tr, b)

			return nil
		})
	}
	_ = grp.Wait()

	for i := range bindings {
		if failures[i] != nil {
			return d.fail(tr, step, i, failures[i])
		}
		if err := write(t, results[i]); err != nil {
			return d.fail(tr, step, i, err)
		}
	}

	return nil
}

func (d *Dispatcher) fail(tr Transform, step, binding int, err error) error {
	te := &TransformError{Transform: tr.Name(), Step: step, Binding: binding, Err: err}
	var pe *paramError
	if errors.As(err, &pe) {
		te.Parameter = pe.name
	}
	d.logger.Debug("transform failed", zap.String("transform", tr.Name()),
		zap.Int("binding", binding), zap.Error(err))

	return te
}

func write(t *table.Table, cols []*table.Column) error {
	for _, c := range cols {
		if err := t.Set(c); err != nil {
			return err
		}
	}

	return nil
}

type paramError struct {
	name string
	err  error
}

func (e *paramError) Error() string { return fmt.Sprintf("%s: %v", e.name, e.err) }
func (e *paramError) Unwrap() error { return e.err }

func wrapParam(name string, err error) error {
	return &paramError{name: name, err: err}
}

// input is a resolved parameter: a constant, a column or a namespace.
type input struct {
	param    Parameter
	constant *quantity.Quantity
	column   *table.Column
	unit     units.Unit
	ns       []nsColumn
}

type nsColumn struct {
	key    string
	column *table.Column
	unit   units.Unit
}

func (in input) perRow() bool {
	if in.column != nil && in.column.Array {
		return true
	}
	for _, c := range in.ns {
		if c.column.Array {
			return true
		}
	}

	return false
}

// evaluate resolves a binding, invokes the transform and returns the columns
// to write. It only reads t.
func (d *Dispatcher) evaluate(ctx context.Context, t *table.Table, tr Transform, b Binding) ([]*table.Column, error) {
	inputs, options, texts, err := d.resolve(t, tr, b)
	if err != nil {
		return nil, err
	}

	rowWise := false
	for _, in := range inputs {
		if in.perRow() {
			rowWise = true
		}
	}

	if !rowWise {
		args, err := d.buildArgs(tr, inputs, options, texts, -1)
		if err != nil {
			return nil, err
		}
		res, err := tr.Invoke(ctx, args)
		if err != nil {
			return nil, err
		}

		return d.columnsFromWhole(t, tr, res)
	}

	perRow := make([][]Result, t.Len())
	for r := 0; r < t.Len(); r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		args, err := d.buildArgs(tr, inputs, options, texts, r)
		if err != nil {
			return nil, err
		}
		res, err := tr.Invoke(ctx, args)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", r)
		}
		perRow[r] = res
	}

	return d.columnsFromRows(t, tr, perRow)
}

func (d *Dispatcher) resolve(t *table.Table, tr Transform, b Binding) ([]input, map[string]any, map[string]string, error) {
	declared := make(map[string]bool)
	inputs := make([]input, 0, len(tr.Parameters()))
	texts := make(map[string]string)

	for _, p := range tr.Parameters() {
		declared[p.Name] = true
		raw, bound := b[p.Name]
		if !bound || raw == nil {
			switch {
			case p.Kind == Index:
				inputs = append(inputs, d.indexInput(t, p))
			case p.Optional:
			default:
				return nil, nil, nil, wrapParam(p.Name, ErrMissingParameter)
			}

			continue
		}
		texts[p.Name] = fmt.Sprint(raw)
		in, err := d.resolveOne(t, p, raw)
		if err != nil {
			return nil, nil, nil, wrapParam(p.Name, err)
		}
		inputs = append(inputs, in)
	}

	options := make(map[string]any)
	for k, v := range b {
		if !declared[k] {
			options[k] = v
		}
	}

	return inputs, options, texts, nil
}

func (d *Dispatcher) indexInput(t *table.Table, p Parameter) input {
	unit := t.Index.Unit
	if unit.Symbol == "" && unit.IsDimensionless() && p.Unit != "" {
		unit = d.units.MustParse(p.Unit)
	}
	q := quantity.New(append([]float64(nil), t.Index.Values...), unit)

	return input{param: p, constant: &q, unit: unit}
}

func (d *Dispatcher) defaultUnit(p Parameter) (units.Unit, error) {
	if p.Unit == "" {
		return units.Dimensionless, nil
	}

	return d.units.Parse(p.Unit)
}

// columnUnit applies the parameter's default unit to unitless columns.
func (d *Dispatcher) columnUnit(c *table.Column, p Parameter) (units.Unit, error) {
	if c.Unit.Symbol != "" || !c.Unit.IsDimensionless() || p.Unit == "" {
		return c.Unit, nil
	}

	return d.defaultUnit(p)
}

func (d *Dispatcher) resolveOne(t *table.Table, p Parameter, raw any) (input, error) {
	def, err := d.defaultUnit(p)
	if err != nil {
		return input{}, err
	}

	var name string
	switch v := raw.(type) {
	case float64:
		q := quantity.Scalar(v, def)

		return input{param: p, constant: &q, unit: def}, nil
	case int:
		q := quantity.Scalar(float64(v), def)

		return input{param: p, constant: &q, unit: def}, nil
	case int64:
		q := quantity.Scalar(float64(v), def)

		return input{param: p, constant: &q, unit: def}, nil
	case string:
		name = v
	default:
		return input{}, errors.Wrapf(ErrUnresolved, "unsupported binding %v", raw)
	}

	col, isColumn := t.Column(name)
	isNamespace := t.IsNamespace(name)
	kind := p.Kind
	if kind == Either {
		kind = Value
		if !isColumn && isNamespace {
			kind = Namespace
		}
	}

	switch kind {
	case Namespace:
		if !isNamespace {
			return input{}, errors.Wrapf(ErrUnresolved, "no namespace %q", name)
		}
		in := input{param: p}
		prefix := table.ParseKey(name)
		for _, c := range t.Namespace(name) {
			if c.Label {
				return input{}, errors.Wrapf(table.ErrLabelColumn, "%q", c.Name())
			}
			u, err := d.columnUnit(c, p)
			if err != nil {
				return input{}, err
			}
			in.ns = append(in.ns, nsColumn{key: c.Key.TrimPrefix(prefix).String(), column: c, unit: u})
		}

		return in, nil
	default:
		if isColumn {
			if col.Label {
				return input{}, errors.Wrapf(table.ErrLabelColumn, "%q", name)
			}
			u, err := d.columnUnit(col, p)
			if err != nil {
				return input{}, err
			}

			return input{param: p, column: col, unit: u}, nil
		}
		if isNamespace {
			return input{}, errors.Wrapf(ErrAmbiguous, "%q", name)
		}
		q, err := quantity.ParseLiteral(d.units, name, def)
		if err != nil {
			return input{}, errors.Wrapf(ErrUnresolved, "%q is neither a column nor a literal", name)
		}

		return input{param: p, constant: &q, unit: q.Unit}, nil
	}
}

// buildArgs materialises inputs; row < 0 passes whole columns.
func (d *Dispatcher) buildArgs(tr Transform, inputs []input, options map[string]any, texts map[string]string, row int) (Args, error) {
	args := Args{
		Values:     make(map[string]quantity.Quantity),
		Namespaces: make(map[string]NamespaceValue),
		Options:    options,
		Inputs:     texts,
		Registry:   d.units,
		Logger:     d.logger.With(zap.String("transform", tr.Name())),
	}
	for _, in := range inputs {
		switch {
		case in.constant != nil:
			args.Values[in.param.Name] = *in.constant
		case in.column != nil:
			q, err := columnValue(in.column, in.unit, row)
			if err != nil {
				return Args{}, wrapParam(in.param.Name, err)
			}
			args.Values[in.param.Name] = q
		default:
			ns := make(NamespaceValue, 0, len(in.ns))
			for _, c := range in.ns {
				q, err := columnValue(c.column, c.unit, row)
				if err != nil {
					return Args{}, wrapParam(in.param.Name, err)
				}
				ns = append(ns, Entry{Key: c.key, Value: q})
			}
			args.Namespaces[in.param.Name] = ns
		}
	}

	return args, nil
}

func columnValue(c *table.Column, unit units.Unit, row int) (quantity.Quantity, error) {
	var (
		q   quantity.Quantity
		err error
	)
	if row < 0 {
		q, err = c.Quantity()
		if err != nil {
			return quantity.Quantity{}, err
		}
	} else {
		q = c.Row(row)
	}
	q.Unit = unit

	return q, nil
}

func (d *Dispatcher) convert(tr Transform, r Result) (quantity.Quantity, error) {
	for _, o := range tr.Outputs() {
		if o.Name != r.Output {
			continue
		}
		switch {
		case o.Unit != "":
		case o.Keep:
			return r.Value, nil
		default:
			return r.Value.Reduced(d.units)
		}

		return r.Value.ToString(d.units, o.Unit)
	}

	return quantity.Quantity{}, errors.Wrapf(ErrUnknownOutput, "%q", r.Output)
}

func (d *Dispatcher) columnsFromWhole(t *table.Table, tr Transform, res []Result) ([]*table.Column, error) {
	out := make([]*table.Column, 0, len(res))
	for _, r := range res {
		q, err := d.convert(tr, r)
		if err != nil {
			return nil, err
		}
		switch {
		case q.Len() == t.Len() && !q.Scalar:
		case q.Len() == 1:
			q = q.Broadcast(t.Len())
		default:
			return nil, errors.Wrapf(ErrOutputShape, "%q has %d values for %d rows", r.Name, q.Len(), t.Len())
		}
		out = append(out, table.ColumnFromQuantity(r.Name, q))
	}

	return out, nil
}

func (d *Dispatcher) columnsFromRows(t *table.Table, tr Transform, perRow [][]Result) ([]*table.Column, error) {
	var (
		order []string
		cols  = make(map[string]*table.Column)
	)
	for r, res := range perRow {
		for _, item := range res {
			q, err := d.convert(tr, item)
			if err != nil {
				return nil, err
			}
			c, ok := cols[item.Name]
			if !ok {
				c = &table.Column{Key: table.ParseKey(item.Name), Unit: q.Unit, Cells: make([]table.Cell, t.Len())}
				for i := range c.Cells {
					c.Cells[i] = table.Cell{Mag: []float64{math.NaN()}}
				}
				cols[item.Name] = c
				order = append(order, item.Name)
			}
			if !q.Scalar {
				c.Array = true
			}
			c.Cells[r] = table.Cell{Mag: q.Mag, Err: q.Err}
		}
	}

	out := make([]*table.Column, len(order))
	for i, name := range order {
		out[i] = cols[name]
	}

	return out, nil
}
