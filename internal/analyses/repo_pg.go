package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres. Results and reports live in
// their own tables keyed by analysis ID; the primary-key constraint is
// what makes re-delivered jobs and duplicate reports safe.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

const analysisColumns = `
	a.id, a.patient_id, a.doctor_id, a.status, a.profile, a.reading, a.created_at, a.updated_at,
	r.prediction, r.confidence_score, r.model_version, r.generated_at,
	d.final_verdict, d.prescription, d.notes, d.approved_at`

const analysisJoins = `
	FROM analyses a
	LEFT JOIN ml_results r ON r.analysis_id = a.id
	LEFT JOIN doctor_reports d ON d.analysis_id = a.id`

// Create inserts a new analysis with its frozen profile and reading.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	profile, err := json.Marshal(a.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile snapshot: %w", err)
	}
	reading, err := json.Marshal(a.Reading)
	if err != nil {
		return fmt.Errorf("marshal reading snapshot: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO analyses (id, patient_id, doctor_id, status, profile, reading, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, a.ID, a.PatientID, a.DoctorID, a.Status, profile, reading, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetByID returns an analysis with its result and report joined in.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT`+analysisColumns+analysisJoins+` WHERE a.id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("select analysis: %w", err)
	}
	return a, nil
}

// UpdateStatus moves the analysis to the given status.
func (r *PGRepo) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE analyses
		SET status = $1, updated_at = now()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResult stores the model output and marks the analysis ML_PROCESSED
// atomically. The ON CONFLICT DO NOTHING insert is the idempotency gate
// for re-delivered jobs.
func (r *PGRepo) SaveResult(ctx context.Context, id string, result MLResult) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ml_results (analysis_id, prediction, confidence_score, model_version, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (analysis_id) DO NOTHING
	`, id, result.Prediction, result.ConfidenceScore, result.ModelVersion, result.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert ml result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResultExists
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE analyses
		SET status = $1, updated_at = now()
		WHERE id = $2
	`, StatusProcessed, id)
	if err != nil {
		return fmt.Errorf("mark analysis processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// SaveReport stores the doctor report and marks the analysis COMPLETED
// atomically. Reports are only accepted on ML_PROCESSED records.
func (r *PGRepo) SaveReport(ctx context.Context, id string, rep Report) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE analyses
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, StatusCompleted, id, StatusProcessed)
	if err != nil {
		return fmt.Errorf("mark analysis completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM analyses WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select analysis status: %w", err)
		}
		if status == StatusCompleted {
			return ErrReportExists
		}
		return ErrNotScored
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO doctor_reports (analysis_id, final_verdict, prescription, notes, approved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (analysis_id) DO NOTHING
	`, id, rep.FinalVerdict, rep.Prescription, rep.Notes, rep.ApprovedAt)
	if err != nil {
		return fmt.Errorf("insert doctor report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReportExists
	}
	return tx.Commit()
}

// ListByPatient returns the patient's analyses, newest first.
func (r *PGRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT`+analysisColumns+analysisJoins+`
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses by patient: %w", err)
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// ListAwaitingReview returns scored analyses assigned to the doctor that
// have no report yet, oldest first.
func (r *PGRepo) ListAwaitingReview(ctx context.Context, doctorID string) ([]Analysis, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT`+analysisColumns+analysisJoins+`
		WHERE a.doctor_id = $1 AND a.status = $2
		ORDER BY a.created_at ASC`, doctorID, StatusProcessed)
	if err != nil {
		return nil, fmt.Errorf("list analyses awaiting review: %w", err)
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// Metrics summarizes the doctor's queue in a single pass.
func (r *PGRepo) Metrics(ctx context.Context, doctorID string) (DashboardMetrics, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE a.status = $2),
		       COUNT(*) FILTER (WHERE r.prediction = $3),
		       COUNT(*) FILTER (WHERE a.status = $4)
		FROM analyses a
		LEFT JOIN ml_results r ON r.analysis_id = a.id
		WHERE a.doctor_id = $1
	`, doctorID, StatusProcessed, PredictionPCOS, StatusCompleted)

	var m DashboardMetrics
	if err := row.Scan(&m.TotalAssigned, &m.AwaitingReview, &m.PositiveScreens, &m.Completed); err != nil {
		return DashboardMetrics{}, fmt.Errorf("doctor metrics: %w", err)
	}
	return m, nil
}

// ListStalePending returns PENDING analyses created before the cutoff.
func (r *PGRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT`+analysisColumns+analysisJoins+`
		WHERE a.status = $1 AND a.created_at < $2
		ORDER BY a.created_at ASC
		LIMIT $3`, StatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending analyses: %w", err)
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var profile, reading []byte
	var prediction, verdict, prescription, notes, modelVersion sql.NullString
	var confidence sql.NullFloat64
	var generatedAt, approvedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.Status, &profile, &reading, &a.CreatedAt, &a.UpdatedAt,
		&prediction, &confidence, &modelVersion, &generatedAt,
		&verdict, &prescription, &notes, &approvedAt,
	)
	if err != nil {
		return Analysis{}, err
	}

	if err := json.Unmarshal(profile, &a.Profile); err != nil {
		return Analysis{}, fmt.Errorf("unmarshal profile snapshot: %w", err)
	}
	if err := json.Unmarshal(reading, &a.Reading); err != nil {
		return Analysis{}, fmt.Errorf("unmarshal reading snapshot: %w", err)
	}
	if prediction.Valid {
		a.MLResult = &MLResult{
			Prediction:      prediction.String,
			ConfidenceScore: confidence.Float64,
			ModelVersion:    modelVersion.String,
			GeneratedAt:     generatedAt.Time,
		}
	}
	if verdict.Valid {
		a.Report = &Report{
			FinalVerdict: verdict.String,
			Prescription: prescription.String,
			Notes:        notes.String,
			ApprovedAt:   approvedAt.Time,
		}
	}
	return a, nil
}

func collectAnalyses(rows *sql.Rows) ([]Analysis, error) {
	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
