package measure_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/dgflow/pkg/pipeline/measure"
	"github.com/askiada/dgflow/pkg/pipeline/model"
)

func TestPipelineMeasure(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	opt := measure.PipelineMeasure(m)
	require.NoError(t, opt.New())

	load := &model.StepInfo{
		Stage:   "load",
		Inputs:  []model.Node{{Kind: model.FileNode, Name: "dg.json"}},
		Outputs: []model.Node{{Kind: model.DatagramNode, Name: "dg"}},
	}
	transform := &model.StepInfo{
		Stage:   "transform",
		Inputs:  []model.Node{{Kind: model.TableNode, Name: "t"}},
		Outputs: []model.Node{{Kind: model.TableNode, Name: "t"}},
	}

	for _, step := range []*model.StepInfo{load, transform} {
		require.NoError(t, opt.PrepareStep(step))
	}
	require.NoError(t, opt.OnStepOutput(load, 4*time.Millisecond))
	require.NoError(t, opt.AfterStage("load", 5*time.Millisecond))
	require.NoError(t, opt.OnStepOutput(transform, 10*time.Millisecond))
	require.NoError(t, opt.OnStepOutput(transform, 20*time.Millisecond))
	require.NoError(t, opt.AfterStage("transform", 31*time.Millisecond))
	require.NoError(t, opt.Finish())

	assert.Len(t, m.AllMetrics(), 2)

	dg := m.GetMetric("dg")
	require.NotNil(t, dg)
	assert.Equal(t, 4*time.Millisecond, dg.AVGDuration())
	assert.Equal(t, &measure.TransportInfo{Elapsed: 4 * time.Millisecond, Total: 1}, dg.AllTransports()["file:dg.json"])
	assert.Positive(t, dg.GetTotalDuration())

	tbl := m.GetMetric("t")
	require.NotNil(t, tbl)
	assert.Equal(t, 15*time.Millisecond, tbl.AVGDuration())
	assert.Equal(t, &measure.TransportInfo{Elapsed: 30 * time.Millisecond, Total: 2}, tbl.AllTransports()["t"])

	assert.Equal(t, map[string]time.Duration{
		"load":      5 * time.Millisecond,
		"transform": 31 * time.Millisecond,
	}, m.StageDurations())
}

func TestAddMetricReturnsExisting(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	first := m.AddMetric("a")
	first.AddDuration(time.Second)
	assert.Same(t, first, m.AddMetric("a"))
	assert.Nil(t, m.GetMetric("b"))
}

func TestRound(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in   time.Duration
		want time.Duration
	}{
		"nanoseconds": {in: 999 * time.Nanosecond, want: 999 * time.Nanosecond},
		"milliseconds": {
			in:   12*time.Millisecond + 345*time.Nanosecond,
			want: 12 * time.Millisecond,
		},
		"seconds": {in: 3*time.Second + 1234*time.Microsecond, want: 3*time.Second + time.Millisecond},
		"minutes": {in: 2*time.Minute + 1500*time.Millisecond, want: 2*time.Minute + 2*time.Second},
		"hours":   {in: 2*time.Hour + 90*time.Second, want: 2*time.Hour + 2*time.Minute},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, measure.Round(tc.in))
		})
	}
}
