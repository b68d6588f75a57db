// Package pipeline executes recipes.
//
// A recipe is run stage by stage, in the fixed order load, extract, pivot,
// transform, plot and save; stages without instructions are skipped. Inside
// a stage, instructions run one after the other in recipe order. The objects
// an instruction reads or writes (datagrams, tables and files) are addressed
// by name and live in the pipeline for the whole run, so they remain
// available through Table and Datagram after a failure.
//
// The first failing instruction stops the run. Its error is returned as a
// StageError naming the stage and the instruction index, and KindOf
// classifies the cause for reporting.
//
// Instrumentation is attached with WithHooks: every model.PipelineOption is
// told when an instruction starts and succeeds, when a stage completes and
// when the run is finished. The measure and drawer subpackages provide the
// timing and lineage graph options.
package pipeline
