package engine

import "fmt"

// SchemaError means a required column could not be located in the input
// header under any known alias. The caller must fix the file; retrying the
// same bytes cannot succeed.
type SchemaError struct {
	Role  Role
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s dataset: required column %q not found under any known header alias", e.Role, e.Field)
}

// ProcessingError wraps an unexpected failure inside the join/classify/
// aggregate stages.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed at %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
