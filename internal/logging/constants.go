package logging

// Standard field names, kept consistent so log output can be filtered.
const (
	FieldOperation = "operation"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldCount     = "count"
	FieldDays      = "days"
	FieldDate      = "date"
	FieldResource  = "resource"
	FieldRunID     = "run_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldAttempt   = "attempt"
	FieldComponent = "component"
)
