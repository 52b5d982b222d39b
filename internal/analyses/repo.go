package analyses

import (
	"context"
	"time"
)

// Repo persists analysis records and their owned results and reports.
type Repo interface {
	// Create inserts a new analysis in its initial status.
	Create(ctx context.Context, a Analysis) error
	// GetByID returns the analysis with its result and report, or ErrNotFound.
	GetByID(ctx context.Context, id string) (Analysis, error)
	// UpdateStatus moves the analysis to the given status. Returns
	// ErrNotFound when no such record exists.
	UpdateStatus(ctx context.Context, id, status string) error
	// SaveResult stores the model output and moves the analysis to
	// ML_PROCESSED in one step. Returns ErrResultExists when a result is
	// already stored for this analysis.
	SaveResult(ctx context.Context, id string, res MLResult) error
	// SaveReport stores the doctor report and moves the analysis to
	// COMPLETED. Returns ErrNotScored unless the analysis is
	// ML_PROCESSED, and ErrReportExists when a report is already filed.
	SaveReport(ctx context.Context, id string, rep Report) error
	// ListByPatient returns the patient's analyses, newest first.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]Analysis, error)
	// ListAwaitingReview returns the doctor's scored analyses with no
	// report yet, oldest first.
	ListAwaitingReview(ctx context.Context, doctorID string) ([]Analysis, error)
	// Metrics summarizes the doctor's assigned analyses.
	Metrics(ctx context.Context, doctorID string) (DashboardMetrics, error)
	// ListStalePending returns PENDING analyses created before the
	// cutoff; the reconciler re-enqueues them.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Analysis, error)
}
