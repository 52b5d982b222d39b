package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	a := Analysis{
		ID:        "analysis-1",
		PatientID: "patient@example.com",
		DoctorID:  "doctor@example.com",
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(
			a.ID,
			a.PatientID,
			a.DoctorID,
			a.Status,
			sqlmock.AnyArg(), // profile jsonb
			sqlmock.AnyArg(), // reading jsonb
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStatusNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusProcessing, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", StatusProcessing)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSaveResult(t *testing.T) {
	repo, mock := newMockRepo(t)

	result := MLResult{
		Prediction:      PredictionPCOS,
		ConfidenceScore: 0.91,
		ModelVersion:    "v1.1.2",
		GeneratedAt:     time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ml_results").
		WithArgs("analysis-1", result.Prediction, result.ConfidenceScore, result.ModelVersion, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusProcessed, "analysis-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SaveResult(context.Background(), "analysis-1", result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSaveResultConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ml_results").
		WithArgs("analysis-1", PredictionPCOS, 0.91, "v1.1.2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SaveResult(context.Background(), "analysis-1", MLResult{
		Prediction:      PredictionPCOS,
		ConfidenceScore: 0.91,
		ModelVersion:    "v1.1.2",
		GeneratedAt:     time.Now().UTC(),
	})
	if !errors.Is(err, ErrResultExists) {
		t.Fatalf("err = %v, want ErrResultExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSaveReportRequiresProcessed(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusCompleted, "analysis-1", StatusProcessed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analyses").
		WithArgs("analysis-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusPending))
	mock.ExpectRollback()

	err := repo.SaveReport(context.Background(), "analysis-1", Report{FinalVerdict: "PCOS confirmed"})
	if !errors.Is(err, ErrNotScored) {
		t.Fatalf("err = %v, want ErrNotScored", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSaveReportAlreadyCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE analyses").
		WithArgs(StatusCompleted, "analysis-1", StatusProcessed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analyses").
		WithArgs("analysis-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusCompleted))
	mock.ExpectRollback()

	err := repo.SaveReport(context.Background(), "analysis-1", Report{FinalVerdict: "PCOS confirmed"})
	if !errors.Is(err, ErrReportExists) {
		t.Fatalf("err = %v, want ErrReportExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDJoinsResultAndReport(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "status", "profile", "reading", "created_at", "updated_at",
		"prediction", "confidence_score", "model_version", "generated_at",
		"final_verdict", "prescription", "notes", "approved_at",
	}).AddRow(
		"analysis-1", "patient@example.com", "doctor@example.com", StatusCompleted,
		[]byte(`{"age":27}`), []byte(`{"height":165,"weight":68}`), now, now,
		PredictionPCOS, 0.91, "v1.1.2", now,
		"PCOS confirmed", "metformin", "", now,
	)
	mock.ExpectQuery("SELECT").WithArgs("analysis-1").WillReturnRows(rows)

	a, err := repo.GetByID(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.MLResult == nil || a.MLResult.Prediction != PredictionPCOS {
		t.Fatalf("ml result = %+v", a.MLResult)
	}
	if a.Report == nil || a.Report.FinalVerdict != "PCOS confirmed" {
		t.Fatalf("report = %+v", a.Report)
	}
	if a.Profile.Age != 27 || a.Reading.HeightCm != 165 {
		t.Fatalf("snapshots = %+v %+v", a.Profile, a.Reading)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
