package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for tests and local development.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Analysis
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Analysis)}
}

func (r *MemoryRepo) Create(_ context.Context, a Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	r.records[a.ID] = a
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id string) (Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.records[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	r.records[id] = a
	return nil
}

func (r *MemoryRepo) SaveResult(_ context.Context, id string, result MLResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if a.MLResult != nil {
		return ErrResultExists
	}
	a.MLResult = &result
	a.Status = StatusProcessed
	a.UpdatedAt = time.Now().UTC()
	r.records[id] = a
	return nil
}

func (r *MemoryRepo) SaveReport(_ context.Context, id string, rep Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if a.Report != nil {
		return ErrReportExists
	}
	if a.Status != StatusProcessed {
		return ErrNotScored
	}
	a.Report = &rep
	a.Status = StatusCompleted
	a.UpdatedAt = time.Now().UTC()
	r.records[id] = a
	return nil
}

func (r *MemoryRepo) ListByPatient(_ context.Context, patientID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Analysis
	for _, a := range r.records {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListAwaitingReview(_ context.Context, doctorID string) ([]Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Analysis
	for _, a := range r.records {
		if a.DoctorID == doctorID && a.Status == StatusProcessed {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Metrics(_ context.Context, doctorID string) (DashboardMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var m DashboardMetrics
	for _, a := range r.records {
		if a.DoctorID != doctorID {
			continue
		}
		m.TotalAssigned++
		if a.Status == StatusProcessed {
			m.AwaitingReview++
		}
		if a.Status == StatusCompleted {
			m.Completed++
		}
		if a.MLResult != nil && a.MLResult.Prediction == PredictionPCOS {
			m.PositiveScreens++
		}
	}
	return m, nil
}

func (r *MemoryRepo) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Analysis
	for _, a := range r.records {
		if a.Status == StatusPending && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
