package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pcos-backend/internal/analyses"
	"pcos-backend/internal/shared/telemetry"
)

// ErrValidation indicates a malformed report submission.
var ErrValidation = errors.New("validation error")

// Service handles doctor review of scored analyses.
type Service struct {
	Analyses analyses.Repo
}

func NewService(repo analyses.Repo) *Service {
	return &Service{Analyses: repo}
}

// Submit files the doctor's verdict on a scored analysis and completes
// it. Only the assigned doctor may file, only once, and only after the
// model result is in.
func (s *Service) Submit(ctx context.Context, analysisID, doctorID, verdict, prescription, notes string) (analyses.Analysis, error) {
	verdict = strings.TrimSpace(verdict)
	if verdict == "" {
		return analyses.Analysis{}, fmt.Errorf("%w: final verdict is required", ErrValidation)
	}

	a, err := s.Analyses.GetByID(ctx, analysisID)
	if err != nil {
		return analyses.Analysis{}, err
	}
	if a.DoctorID != doctorID {
		return analyses.Analysis{}, analyses.ErrForbidden
	}

	rep := analyses.Report{
		FinalVerdict: verdict,
		Prescription: strings.TrimSpace(prescription),
		Notes:        strings.TrimSpace(notes),
		ApprovedAt:   time.Now().UTC(),
	}
	if err := s.Analyses.SaveReport(ctx, analysisID, rep); err != nil {
		return analyses.Analysis{}, err
	}

	telemetry.Info("report.filed", map[string]any{
		"analysis_id": analysisID,
		"user_id":     doctorID,
	})

	a.Report = &rep
	a.Status = analyses.StatusCompleted
	return a, nil
}

// PendingReview lists the doctor's scored analyses awaiting a report.
func (s *Service) PendingReview(ctx context.Context, doctorID string) ([]analyses.Analysis, error) {
	return s.Analyses.ListAwaitingReview(ctx, doctorID)
}

// Dashboard summarizes the doctor's assigned analyses.
func (s *Service) Dashboard(ctx context.Context, doctorID string) (analyses.DashboardMetrics, error) {
	return s.Analyses.Metrics(ctx, doctorID)
}
