package model

// Error codes carried in ErrorBody.Code.
const (
	CodeValidation   = "validation"
	CodeReferential  = "referential"
	CodeDuplicate    = "duplicate"
	CodeCycle        = "cycle"
	CodeNotFound     = "not_found"
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

// ErrorBody is the error document returned by the HTTP API and attached to
// gRPC statuses as a detail. The optional fields carry the structured part
// of the typed error named by Code.
type ErrorBody struct {
	Error      string       `json:"error"`
	Code       string       `json:"code,omitempty"`
	Stage      string       `json:"stage,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
	Missing    []EntityRef  `json:"missing,omitempty"`
	ExistingID string       `json:"existing_id,omitempty"`
	ID         string       `json:"id,omitempty"`
	Path       []EntityRef  `json:"path,omitempty"`
}

// Cause rebuilds the typed error the body describes. It returns nil for
// codes without a model counterpart.
func (b *ErrorBody) Cause() error {
	switch b.Code {
	case CodeValidation:
		return &ValidationError{Errors: b.Errors}
	case CodeReferential:
		return &ReferentialError{Missing: b.Missing}
	case CodeDuplicate:
		return &DuplicateError{ExistingID: b.ExistingID}
	case CodeCycle:
		return &CycleError{Path: b.Path}
	case CodeNotFound:
		return &NotFoundError{ID: b.ID}
	}
	return nil
}
