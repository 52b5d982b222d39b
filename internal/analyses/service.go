package analyses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pcos-backend/internal/inference"
	"pcos-backend/internal/pairing"
	"pcos-backend/internal/patients"
	"pcos-backend/internal/queue"
	"pcos-backend/internal/shared/metrics"
	"pcos-backend/internal/shared/telemetry"
)

// Service drives the analysis pipeline: submissions on the API side,
// scoring on the worker side.
type Service struct {
	Repo         Repo
	Patients     patients.Repo
	Pairing      *pairing.Service
	Queue        queue.Client
	Inference    inference.Client
	ModelVersion string
}

// FinalizeSubmission turns a staged device reading into a durable
// PENDING analysis and enqueues a scoring job. The profile and reading
// are frozen into the record so later edits cannot change what gets
// scored. Enqueue failures are not fatal: the record stays PENDING and
// the reconciler re-enqueues it.
func (s *Service) FinalizeSubmission(ctx context.Context, patientID, code, requestID string) (Analysis, error) {
	reading, err := s.Pairing.Resolve(ctx, code, patientID)
	if err != nil {
		return Analysis{}, err
	}

	profile, err := s.Patients.GetByEmail(ctx, patientID)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			return Analysis{}, fmt.Errorf("%w: complete your profile before submitting", patients.ErrNotFound)
		}
		return Analysis{}, err
	}

	now := time.Now().UTC()
	a := Analysis{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  profile.DoctorEmail,
		Status:    StatusPending,
		Profile: ProfileSnapshot{
			Age:           profile.Age,
			CycleLength:   profile.CycleLength,
			CycleType:     profile.CycleType,
			SkinDarkening: profile.SkinDarkening,
			HairGrowth:    profile.HairGrowth,
			Pimples:       profile.Pimples,
			HairLoss:      profile.HairLoss,
			WeightGain:    profile.WeightGain,
			FastFood:      profile.FastFood,
			HipInch:       profile.HipInch,
			WaistInch:     profile.WaistInch,
		},
		Reading: ReadingSnapshot{
			SpO2:        reading.SpO2,
			Temperature: reading.Temperature,
			HeartRate:   reading.HeartRate,
			HeightCm:    reading.HeightCm,
			WeightKg:    reading.WeightKg,
			RecordedAt:  reading.RecordedAt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Snapshot features must be scoreable before the record is created.
	if _, err := BuildFeatures(a); err != nil {
		return Analysis{}, err
	}

	if err := s.Repo.Create(ctx, a); err != nil {
		return Analysis{}, err
	}

	if err := s.enqueue(ctx, a.ID, requestID); err != nil {
		telemetry.Error("analysis.enqueue_failed", map[string]any{
			"analysis_id": a.ID,
			"error":       err.Error(),
		})
	}

	s.Pairing.Consume(ctx, code, patientID)

	telemetry.Info("analysis.submitted", map[string]any{
		"analysis_id": a.ID,
		"user_id":     patientID,
		"request_id":  requestID,
	})
	return a, nil
}

// ProcessAnalysis scores one analysis; it is the worker-side job handler.
// Jobs are delivered at least once, so a record that already has a
// stored result is acknowledged without calling the model again.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}

	if a.MLResult != nil {
		telemetry.Info("scoring.skipped_existing_result", map[string]any{"analysis_id": a.ID})
		return nil
	}
	if a.Status == StatusCompleted {
		return nil
	}

	if err := s.Repo.UpdateStatus(ctx, a.ID, StatusProcessing); err != nil {
		return err
	}

	features, err := BuildFeatures(a)
	if err != nil {
		// Bad snapshot data never scores; failing the record without
		// returning an error keeps the job out of the retry loop.
		metrics.IncScoringFailed()
		if stErr := s.Repo.UpdateStatus(ctx, a.ID, StatusFailed); stErr != nil {
			return stErr
		}
		telemetry.Error("scoring.invalid_features", map[string]any{
			"analysis_id": a.ID,
			"error":       err.Error(),
		})
		return nil
	}

	metrics.IncScoringStarted()
	start := time.Now()
	pred, err := s.Inference.Predict(ctx, features)
	metrics.ObserveScoringDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncScoringFailed()
		if stErr := s.Repo.UpdateStatus(ctx, a.ID, StatusFailed); stErr != nil {
			telemetry.Error("scoring.mark_failed_error", map[string]any{
				"analysis_id": a.ID,
				"error":       stErr.Error(),
			})
		}
		return fmt.Errorf("predict analysis %s: %w", a.ID, err)
	}

	label := PredictionNoPCOS
	if pred.PCOSPrediction == 1 {
		label = PredictionPCOS
	}
	result := MLResult{
		Prediction:      label,
		ConfidenceScore: pred.ConfidenceScore,
		ModelVersion:    s.ModelVersion,
		GeneratedAt:     time.Now().UTC(),
	}

	if err := s.Repo.SaveResult(ctx, a.ID, result); err != nil {
		if errors.Is(err, ErrResultExists) {
			// Another delivery won the race; its result stands.
			return nil
		}
		return err
	}

	metrics.IncScoringCompleted()
	telemetry.Info("scoring.completed", map[string]any{
		"analysis_id": a.ID,
		"prediction":  label,
		"confidence":  pred.ConfidenceScore,
		"request_id":  RequestIDFromContext(ctx),
	})
	return nil
}

// Retry resets a failed analysis to PENDING and enqueues a fresh scoring
// job. Only the owning patient may retry, and only from ML_FAILED.
func (s *Service) Retry(ctx context.Context, analysisID, patientID string) (Analysis, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.PatientID != patientID {
		return Analysis{}, ErrForbidden
	}
	if a.Status != StatusFailed {
		return Analysis{}, ErrNotRetryable
	}

	if err := s.Repo.UpdateStatus(ctx, a.ID, StatusPending); err != nil {
		return Analysis{}, err
	}
	a.Status = StatusPending

	if err := s.enqueue(ctx, a.ID, ""); err != nil {
		telemetry.Error("analysis.enqueue_failed", map[string]any{
			"analysis_id": a.ID,
			"error":       err.Error(),
		})
	}
	return a, nil
}

// Get returns an analysis visible to the requester: its patient or its
// assigned doctor.
func (s *Service) Get(ctx context.Context, analysisID, requesterID string) (Analysis, error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.PatientID != requesterID && a.DoctorID != requesterID {
		return Analysis{}, ErrForbidden
	}
	return a, nil
}

// ListForPatient returns the requester's own analyses, newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID string, limit int) ([]Analysis, error) {
	return s.Repo.ListByPatient(ctx, patientID, limit)
}

// Requeue sends a scoring job for an existing record; used by the
// reconciler for PENDING records whose original enqueue was lost.
func (s *Service) Requeue(ctx context.Context, analysisID string) error {
	return s.enqueue(ctx, analysisID, "")
}

func (s *Service) enqueue(ctx context.Context, analysisID, requestID string) error {
	return s.Queue.Send(ctx, queue.Message{
		AnalysisID: analysisID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
