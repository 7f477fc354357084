package constants

// Common error messages
const (
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrMissingOrgID       = "organization_id required"
	ErrInvalidPeriod      = "invalid period, expected YYYY-MM"
	ErrMissingFile        = "both planned and actual files are required"
	ErrUnsupportedFile    = "unsupported file type, expected .xlsx, .xls or .csv"
	ErrJobNotFound        = "job not found"
	ErrArtifactNotFound   = "artifact not found"
	ErrPeriodNotFound     = "no data available for the requested period"
	ErrJobInFlight        = "a job is already running for this organization and period"
	ErrQueueFull          = "the service is busy, retry later"
	ErrDB                 = "DB error"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrInternalProcessing = "internal processing failure"
)

// Multipart form field names for job submission
const (
	FieldOrgID   = "organization_id"
	FieldPeriod  = "period"
	FieldPlanned = "planned_file"
	FieldActual  = "actual_file"
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "Content-Type"
)
