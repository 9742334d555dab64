// Package pipeline runs the batch analysis: assemble, trim, extract,
// compute, summarize and write, followed by the optional sinks.
package pipeline

import "fmt"

// Stage names a pipeline step in error messages.
type Stage string

// Pipeline stages in execution order.
const (
	StageConfigure Stage = "configure"
	StageAssemble  Stage = "assemble"
	StageTrim      Stage = "trim"
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageWrite     Stage = "write"
	StagePlot      Stage = "plot"
	StageExport    Stage = "export"
)

// StageError attributes a fatal error to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
