package importer

import "fmt"

// ConfigurationError reports invalid import setup: a non-positive chunk
// size, a heading-name collision, an unknown rule kind, or a rule bound to a
// column that does not exist. Configuration errors are always fatal and are
// never subject to skip policies.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "import configuration: " + e.Reason
}

// SourceReadError reports that the RowSource failed to produce the next row.
// Always fatal: the import aborts and any open chunk scope is rolled back.
type SourceReadError struct {
	Position int // position of the row being read, 0 if unknown
	Err      error
}

func (e *SourceReadError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("read row %d: %v", e.Position, e.Err)
	}
	return fmt.Sprintf("read row: %v", e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// PersistenceError reports that the row consumer failed while storing a row.
// Unless skip-on-error routes it to the error callback, it aborts the import
// and rolls back the current chunk.
type PersistenceError struct {
	Row int // 1-based source position of the offending row
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist row %d: %v", e.Row, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError is the aggregate error raised at the end of an import when
// failures were collected and skip-on-failure is not set. Failures are
// ordered by row position, then attribute.
type ValidationError struct {
	Failures []Failure
}

func (e *ValidationError) Error() string {
	n := 0
	for _, f := range e.Failures {
		n += len(f.Errors)
	}
	return fmt.Sprintf("import validation failed: %d error(s) across %d row/attribute pair(s)", n, len(e.Failures))
}
