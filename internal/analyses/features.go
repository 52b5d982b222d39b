package analyses

import (
	"fmt"
	"math"

	"pcos-backend/internal/inference"
	"pcos-backend/internal/patients"
)

// ComputeBMI returns weight(kg) / height(m)^2 rounded to two decimals.
func ComputeBMI(heightCm, weightKg float64) (float64, error) {
	if heightCm <= 0 {
		return 0, fmt.Errorf("height must be positive, got %v", heightCm)
	}
	if weightKg <= 0 {
		return 0, fmt.Errorf("weight must be positive, got %v", weightKg)
	}
	m := heightCm / 100
	bmi := weightKg / (m * m)
	return math.Round(bmi*100) / 100, nil
}

func boolFeature(b bool) int {
	if b {
		return 1
	}
	return 0
}

// BuildFeatures assembles the inference payload from the frozen profile
// and device reading on the analysis.
func BuildFeatures(a Analysis) (inference.FeatureVector, error) {
	bmi, err := ComputeBMI(a.Reading.HeightCm, a.Reading.WeightKg)
	if err != nil {
		return inference.FeatureVector{}, fmt.Errorf("compute bmi: %w", err)
	}

	irregular := 0
	if a.Profile.CycleType == patients.CycleIrregular {
		irregular = 1
	}

	return inference.FeatureVector{
		HairGrowth:     boolFeature(a.Profile.HairGrowth),
		SkinDarkening:  boolFeature(a.Profile.SkinDarkening),
		WeightGain:     boolFeature(a.Profile.WeightGain),
		FastFood:       boolFeature(a.Profile.FastFood),
		CycleLength:    a.Profile.CycleLength,
		CycleIrregular: irregular,
		BMI:            &bmi,
		WeightKg:       a.Reading.WeightKg,
		HipInch:        a.Profile.HipInch,
	}, nil
}
