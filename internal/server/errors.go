package server

import (
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/plangraph/internal/depgraph"
	"github.com/alfredjeanlab/plangraph/internal/model"
)

// inputError indicates a malformed request that never reached the manager.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// classify maps an error to its HTTP status, gRPC code and wire body.
// Unclassified errors are reported as internal without leaking their text.
func classify(err error) (int, codes.Code, *model.ErrorBody) {
	body := &model.ErrorBody{Error: err.Error()}

	var pe *depgraph.PipelineError
	if errors.As(err, &pe) {
		body.Stage = pe.Stage.String()
	}

	var (
		ie inputError
		ve *model.ValidationError
		re *model.ReferentialError
		de *model.DuplicateError
		ce *model.CycleError
		nf *model.NotFoundError
	)
	switch {
	case errors.As(err, &ie):
		body.Code = model.CodeBadRequest
		return http.StatusBadRequest, codes.InvalidArgument, body
	case errors.As(err, &ve):
		body.Code = model.CodeValidation
		body.Errors = ve.Errors
		return http.StatusBadRequest, codes.InvalidArgument, body
	case errors.As(err, &re):
		body.Code = model.CodeReferential
		body.Missing = re.Missing
		return http.StatusUnprocessableEntity, codes.FailedPrecondition, body
	case errors.As(err, &de):
		body.Code = model.CodeDuplicate
		body.ExistingID = de.ExistingID
		return http.StatusConflict, codes.AlreadyExists, body
	case errors.As(err, &ce):
		body.Code = model.CodeCycle
		body.Path = ce.Path
		return http.StatusConflict, codes.FailedPrecondition, body
	case errors.As(err, &nf):
		body.Code = model.CodeNotFound
		body.ID = nf.ID
		return http.StatusNotFound, codes.NotFound, body
	}

	slog.Error("internal error", "stage", body.Stage, "err", err)
	return http.StatusInternalServerError, codes.Internal, &model.ErrorBody{
		Error: "internal error",
		Code:  model.CodeInternal,
		Stage: body.Stage,
	}
}

// writeAPIError writes err as a JSON error document.
func writeAPIError(w http.ResponseWriter, err error) {
	code, _, body := classify(err)
	writeJSON(w, code, body)
}

// grpcError converts err to a gRPC status carrying the wire body as a
// google.protobuf.Struct detail.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	_, code, body := classify(err)
	st := status.New(code, body.Error)
	detail, derr := toStruct(body)
	if derr != nil {
		return st.Err()
	}
	if withDetail, derr := st.WithDetails(detail); derr == nil {
		st = withDetail
	}
	return st.Err()
}
