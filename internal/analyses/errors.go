package analyses

import "errors"

var (
	// ErrNotFound indicates the analysis does not exist.
	ErrNotFound = errors.New("analysis not found")
	// ErrForbidden indicates the caller does not own the analysis.
	ErrForbidden = errors.New("analysis belongs to another user")
	// ErrResultExists indicates a model result is already stored; a
	// re-delivered job must not overwrite it.
	ErrResultExists = errors.New("ml result already exists")
	// ErrReportExists indicates a doctor report is already filed.
	ErrReportExists = errors.New("report already exists")
	// ErrNotScored indicates a report was attempted before the model
	// result arrived.
	ErrNotScored = errors.New("analysis has not been scored")
	// ErrNotRetryable indicates a manual retry on a record that is not
	// in the failed state.
	ErrNotRetryable = errors.New("analysis is not in a failed state")
)
