package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"pcos-backend/internal/analyses"
)

func seedAnalysis(t *testing.T, repo *analyses.MemoryRepo, status string) analyses.Analysis {
	t.Helper()
	a := analyses.Analysis{
		ID:        "analysis-1",
		PatientID: "patient@example.com",
		DoctorID:  "doctor@example.com",
		Status:    analyses.StatusPending,
		Reading:   analyses.ReadingSnapshot{HeightCm: 165, WeightKg: 68},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	if status == analyses.StatusProcessed {
		err := repo.SaveResult(context.Background(), a.ID, analyses.MLResult{
			Prediction:      analyses.PredictionPCOS,
			ConfidenceScore: 0.9,
			ModelVersion:    "v1.1.2",
			GeneratedAt:     time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("save result: %v", err)
		}
	} else if status != analyses.StatusPending {
		if err := repo.UpdateStatus(context.Background(), a.ID, status); err != nil {
			t.Fatalf("update status: %v", err)
		}
	}
	a.Status = status
	return a
}

func TestSubmitCompletesAnalysis(t *testing.T) {
	repo := analyses.NewMemoryRepo()
	svc := NewService(repo)
	a := seedAnalysis(t, repo, analyses.StatusProcessed)

	got, err := svc.Submit(context.Background(), a.ID, "doctor@example.com", "PCOS confirmed", "metformin 500mg", "follow up in 3 months")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != analyses.StatusCompleted {
		t.Fatalf("status = %q", got.Status)
	}
	if got.Report == nil || got.Report.FinalVerdict != "PCOS confirmed" {
		t.Fatalf("report = %+v", got.Report)
	}

	stored, _ := repo.GetByID(context.Background(), a.ID)
	if stored.Status != analyses.StatusCompleted || stored.Report == nil {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestSubmitRejectsUnscored(t *testing.T) {
	repo := analyses.NewMemoryRepo()
	svc := NewService(repo)
	a := seedAnalysis(t, repo, analyses.StatusPending)

	_, err := svc.Submit(context.Background(), a.ID, "doctor@example.com", "verdict", "", "")
	if !errors.Is(err, analyses.ErrNotScored) {
		t.Fatalf("err = %v, want ErrNotScored", err)
	}
}

func TestSubmitRejectsForeignDoctor(t *testing.T) {
	repo := analyses.NewMemoryRepo()
	svc := NewService(repo)
	a := seedAnalysis(t, repo, analyses.StatusProcessed)

	_, err := svc.Submit(context.Background(), a.ID, "other@example.com", "verdict", "", "")
	if !errors.Is(err, analyses.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSubmitOnce(t *testing.T) {
	repo := analyses.NewMemoryRepo()
	svc := NewService(repo)
	a := seedAnalysis(t, repo, analyses.StatusProcessed)

	if _, err := svc.Submit(context.Background(), a.ID, "doctor@example.com", "verdict", "", ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := svc.Submit(context.Background(), a.ID, "doctor@example.com", "second verdict", "", "")
	if !errors.Is(err, analyses.ErrReportExists) {
		t.Fatalf("err = %v, want ErrReportExists", err)
	}
}

func TestSubmitRequiresVerdict(t *testing.T) {
	repo := analyses.NewMemoryRepo()
	svc := NewService(repo)
	a := seedAnalysis(t, repo, analyses.StatusProcessed)

	if _, err := svc.Submit(context.Background(), a.ID, "doctor@example.com", "   ", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPendingReviewAndDashboard(t *testing.T) {
	repo := analyses.NewMemoryRepo()
	svc := NewService(repo)
	a := seedAnalysis(t, repo, analyses.StatusProcessed)

	pending, err := svc.PendingReview(context.Background(), "doctor@example.com")
	if err != nil {
		t.Fatalf("pending review: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("pending = %+v", pending)
	}

	m, err := svc.Dashboard(context.Background(), "doctor@example.com")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if m.TotalAssigned != 1 || m.AwaitingReview != 1 || m.PositiveScreens != 1 || m.Completed != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}
