package logging

// Field name constants for structured logging.
const (
	// Common fields.
	FieldError  = "error"
	FieldPath   = "path"
	FieldFile   = "file"
	FieldInput  = "input"
	FieldOutput = "output"
	FieldCount  = "count"

	// Pipeline fields.
	FieldJobID    = "job_id"
	FieldKind     = "kind"
	FieldLine     = "line"
	FieldBatch    = "batch"
	FieldChunks   = "chunks"
	FieldRecords  = "records"
	FieldFailed   = "failed"
	FieldSkipped  = "skipped"
	FieldDuration = "duration"

	// Generation fields.
	FieldProvider = "provider"
	FieldModel    = "model"
	FieldAttempt  = "attempt"

	// Version fields.
	FieldVersion = "version"
	FieldCommit  = "commit"
	FieldBuilt   = "built"
)
