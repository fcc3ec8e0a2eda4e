package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// NoteLength counts the characters of a note the way the bound is enforced:
// runes after NFC normalisation, so composed and decomposed input agree.
func NoteLength(note string) int {
	return utf8.RuneCountInString(norm.NFC.String(note))
}

// ValidateDraft checks a candidate edge's shape. Every rule is evaluated so
// the caller can report all problems at once. It returns a *ValidationError
// if any rule fails, or nil if the draft is valid.
func ValidateDraft(d DependencyDraft) error {
	var ve ValidationError

	validateRef(&ve, "from", d.From)
	validateRef(&ve, "to", d.To)

	if d.From == d.To && !d.From.IsZero() {
		ve.add("to", "must differ from from (self-dependency on %s)", d.From)
	}

	validateKind(&ve, d.Kind)
	validateLag(&ve, d.LagDays)
	validateNote(&ve, d.Note)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidatePatch checks the mutable fields present in a patch against the same
// bounds as ValidateDraft. Endpoint changes are reported as errors.
func ValidatePatch(p DependencyPatch) error {
	var ve ValidationError

	if p.From != nil {
		ve.add("from", "is immutable; delete and recreate the dependency instead")
	}
	if p.To != nil {
		ve.add("to", "is immutable; delete and recreate the dependency instead")
	}
	if p.Kind != nil {
		validateKind(&ve, *p.Kind)
	}
	if p.LagDays != nil {
		validateLag(&ve, *p.LagDays)
	}
	if p.Note != nil {
		validateNote(&ve, *p.Note)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateRef(ve *ValidationError, field string, ref EntityRef) {
	if !ref.Kind.IsValid() {
		ve.add(field+".kind", "invalid value %q (want project or task)", ref.Kind)
	}
	if strings.TrimSpace(ref.ID) == "" {
		ve.add(field+".id", "is required")
	}
}

func validateKind(ve *ValidationError, k DependencyKind) {
	if !k.IsValid() {
		ve.add("kind", "invalid value %q (want FS, SS, FF or SF)", k)
	}
}

func validateLag(ve *ValidationError, lag int) {
	if lag < MinLagDays || lag > MaxLagDays {
		ve.add("lag_days", "must be between %d and %d, got %d", MinLagDays, MaxLagDays, lag)
	}
}

func validateNote(ve *ValidationError, note string) {
	if n := NoteLength(note); n > MaxNoteLength {
		ve.add("note", "must be %d characters or fewer, got %d", MaxNoteLength, n)
	}
}
