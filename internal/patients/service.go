package patients

import (
	"context"
	"fmt"
	"strings"
)

// Service handles profile reads and questionnaire updates.
type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Save validates and stores the questionnaire for the given patient.
// The email always comes from the authenticated session, never the body.
func (s *Service) Save(ctx context.Context, email string, p Profile) (Profile, error) {
	if s == nil || s.Repo == nil {
		return Profile{}, fmt.Errorf("patients service not configured")
	}

	p.Email = email
	p.CycleType = strings.ToUpper(strings.TrimSpace(p.CycleType))
	if p.CycleType == "" {
		p.CycleType = CycleRegular
	}
	if p.CycleType != CycleRegular && p.CycleType != CycleIrregular {
		return Profile{}, fmt.Errorf("cycle type must be %s or %s", CycleRegular, CycleIrregular)
	}
	if p.Age < 0 || p.Age > 120 {
		return Profile{}, fmt.Errorf("age out of range")
	}
	if p.CycleLength < 0 {
		return Profile{}, fmt.Errorf("cycle length must not be negative")
	}
	if p.HipInch < 0 || p.WaistInch < 0 {
		return Profile{}, fmt.Errorf("measurements must not be negative")
	}
	p.DoctorEmail = strings.ToLower(strings.TrimSpace(p.DoctorEmail))

	if err := s.Repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Get returns the stored profile for the given patient.
func (s *Service) Get(ctx context.Context, email string) (Profile, error) {
	if s == nil || s.Repo == nil {
		return Profile{}, fmt.Errorf("patients service not configured")
	}
	return s.Repo.GetByEmail(ctx, email)
}
