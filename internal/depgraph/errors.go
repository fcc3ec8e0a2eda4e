package depgraph

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/plangraph/internal/model"
)

// Stage is a step of the write pipeline:
// Received → Validated → EndpointsChecked → DuplicateChecked → CycleChecked → Persisted → AuditEmitted.
type Stage int

const (
	StageReceived Stage = iota
	StageValidated
	StageEndpointsChecked
	StageDuplicateChecked
	StageCycleChecked
	StagePersisted
	StageAuditEmitted
)

var stageNames = [...]string{
	StageReceived:         "received",
	StageValidated:        "validated",
	StageEndpointsChecked: "endpoints_checked",
	StageDuplicateChecked: "duplicate_checked",
	StageCycleChecked:     "cycle_checked",
	StagePersisted:        "persisted",
	StageAuditEmitted:     "audit_emitted",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// PipelineError reports the stage a write could not reach and why. Err is
// one of *model.ValidationError, *model.ReferentialError,
// *model.DuplicateError, *model.CycleError, *model.NotFoundError or a store
// error.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}

func IsValidation(err error) bool {
	var ve *model.ValidationError
	return errors.As(err, &ve)
}

func IsReferential(err error) bool {
	var re *model.ReferentialError
	return errors.As(err, &re)
}

func IsDuplicate(err error) bool {
	var de *model.DuplicateError
	return errors.As(err, &de)
}

func IsCycle(err error) bool {
	var ce *model.CycleError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
