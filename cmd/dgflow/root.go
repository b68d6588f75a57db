package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/askiada/dgflow/internal/buildinfo"
	"github.com/askiada/dgflow/internal/logging"
	"github.com/askiada/dgflow/pkg/pipeline"
	"github.com/askiada/dgflow/pkg/pipeline/drawer"
	"github.com/askiada/dgflow/pkg/pipeline/measure"
	"github.com/askiada/dgflow/pkg/recipe"
)

type options struct {
	patch    string
	verbose  int
	quiet    int
	graph    string
	metrics  bool
	parallel int
	baseDir  string

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dgflow [flags] RECIPE",
		Short: "Run a post-processing recipe over datagrams and tables",
		Long: `dgflow loads datagrams and tables, extracts columns into tables, pivots
and transforms them, then plots and saves the results, as described by a
YAML or JSON recipe.

Relative paths in the recipe are resolved against the working directory,
or against --base-dir when given.`,
		Version:       buildinfo.String(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.logger, err = logging.New(opts.verbose - opts.quiet)
			if err != nil {
				return err
			}
			opts.logger.Debug("logger ready", zap.Stringer("level", logging.Level(opts.verbose-opts.quiet)))

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVar(&opts.patch, "patch", "", "replace the $patch token in load and save paths")
	flags.CountVarP(&opts.verbose, "verbose", "v", "increase verbosity by one level")
	flags.CountVarP(&opts.quiet, "quiet", "q", "decrease verbosity by one level")
	flags.StringVar(&opts.graph, "graph", "", "write the lineage graph of the run to this DOT file")
	flags.BoolVar(&opts.metrics, "metrics", false, "print stage and table timings after the run")
	flags.IntVar(&opts.parallel, "parallel", 1, "evaluate up to N bindings of a transform concurrently")
	flags.StringVar(&opts.baseDir, "base-dir", "", "directory relative recipe paths are resolved against")

	return cmd
}

func run(ctx context.Context, out io.Writer, path string, opts *options) error {
	rcp, err := recipe.ParseFile(path)
	if err != nil {
		return errors.Wrapf(err, "%s error", pipeline.KindOf(err))
	}
	if opts.patch != "" {
		rcp.Patch(opts.patch)
	}

	m := measure.NewDefaultMeasure()
	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(opts.logger),
		pipeline.WithParallel(opts.parallel),
		pipeline.WithBaseDir(opts.baseDir),
	}
	if opts.metrics || opts.graph != "" {
		pipeOpts = append(pipeOpts, pipeline.WithHooks(measure.PipelineMeasure(m)))
	}
	if opts.graph != "" {
		pipeOpts = append(pipeOpts, pipeline.WithHooks(drawer.PipelineDrawer(drawer.NewDOTDrawer(opts.graph), m)))
	}

	pipe, err := pipeline.New(rcp, pipeOpts...)
	if err != nil {
		return errors.Wrapf(err, "%s error", pipeline.KindOf(err))
	}
	opts.logger.Info("run started", zap.String("recipe", path), zap.String("run_id", pipe.RunID()))

	if err := pipe.Run(ctx); err != nil {
		return errors.Wrapf(err, "%s error", pipeline.KindOf(err))
	}

	if opts.metrics {
		return printMetrics(out, m)
	}

	return nil
}

var stageOrder = []string{
	recipe.StageLoad,
	recipe.StageExtract,
	recipe.StagePivot,
	recipe.StageTransform,
	recipe.StagePlot,
	recipe.StageSave,
}

func printMetrics(out io.Writer, m measure.Measure) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tELAPSED")
	durations := m.StageDurations()
	for _, stage := range stageOrder {
		if d, ok := durations[stage]; ok {
			fmt.Fprintf(w, "%s\t%s\n", stage, measure.Round(d))
		}
	}

	fmt.Fprintln(w, "\nOBJECT\tAVG\tEND")
	metrics := m.AllMetrics()
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mt := metrics[name]
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, mt.AVGDuration(), measure.Round(mt.GetTotalDuration()))
	}

	return errors.Wrap(w.Flush(), "unable to print metrics")
}
