package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo is a Postgres-backed implementation of Repo.
type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

func (r *PGRepo) Upsert(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patient_profiles (
			email, age, phone_number, doctor_email,
			cycle_length, cycle_type,
			skin_darkening, hair_growth, pimples, hair_loss, weight_gain, fast_food,
			hip, waist, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (email) DO UPDATE SET
			age            = EXCLUDED.age,
			phone_number   = EXCLUDED.phone_number,
			doctor_email   = EXCLUDED.doctor_email,
			cycle_length   = EXCLUDED.cycle_length,
			cycle_type     = EXCLUDED.cycle_type,
			skin_darkening = EXCLUDED.skin_darkening,
			hair_growth    = EXCLUDED.hair_growth,
			pimples        = EXCLUDED.pimples,
			hair_loss      = EXCLUDED.hair_loss,
			weight_gain    = EXCLUDED.weight_gain,
			fast_food      = EXCLUDED.fast_food,
			hip            = EXCLUDED.hip,
			waist          = EXCLUDED.waist,
			updated_at     = NOW()
	`, p.Email, p.Age, p.PhoneNumber, p.DoctorEmail,
		p.CycleLength, p.CycleType,
		p.SkinDarkening, p.HairGrowth, p.Pimples, p.HairLoss, p.WeightGain, p.FastFood,
		p.HipInch, p.WaistInch)
	if err != nil {
		return fmt.Errorf("upsert patient profile: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT email, age, phone_number, doctor_email,
		       cycle_length, cycle_type,
		       skin_darkening, hair_growth, pimples, hair_loss, weight_gain, fast_food,
		       hip, waist, updated_at
		FROM patient_profiles
		WHERE email = $1
	`, email)

	var p Profile
	err := row.Scan(&p.Email, &p.Age, &p.PhoneNumber, &p.DoctorEmail,
		&p.CycleLength, &p.CycleType,
		&p.SkinDarkening, &p.HairGrowth, &p.Pimples, &p.HairLoss, &p.WeightGain, &p.FastFood,
		&p.HipInch, &p.WaistInch, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("select patient profile: %w", err)
	}
	return p, nil
}
