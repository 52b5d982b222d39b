package inference

import (
	"context"
	"errors"
)

// FeatureVector is the request contract of the PCOS inference service.
type FeatureVector struct {
	HairGrowth     int      `json:"hair_growth"`
	SkinDarkening  int      `json:"skin_darkening"`
	WeightGain     int      `json:"weight_gain"`
	FastFood       int      `json:"fast_food"`
	CycleLength    int      `json:"cycle_length"`
	CycleIrregular int      `json:"cycle_irregular"`
	BMI            *float64 `json:"bmi"`
	WeightKg       float64  `json:"weight_kg"`
	HipInch        float64  `json:"hip_inch"`
}

// Prediction is the response contract of the PCOS inference service.
type Prediction struct {
	PCOSPrediction  int
	ConfidenceScore float64
}

// Client calls the external ML inference endpoint.
type Client interface {
	Predict(ctx context.Context, features FeatureVector) (Prediction, error)
}

// PlaceholderClient stands in when no inference endpoint is configured.
type PlaceholderClient struct{}

// Predict always fails; scoring jobs retry until an endpoint is configured.
func (PlaceholderClient) Predict(ctx context.Context, features FeatureVector) (Prediction, error) {
	_ = ctx
	_ = features
	return Prediction{}, errors.New("ml inference client not configured")
}

var _ Client = PlaceholderClient{}
