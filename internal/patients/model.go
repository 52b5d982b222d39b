package patients

import "time"

// Cycle type values stored on the profile.
const (
	CycleRegular   = "REGULAR"
	CycleIrregular = "IRREGULAR"
)

// Profile is the self-reported screening questionnaire for a patient,
// keyed by the patient's account email. Symptom booleans and body
// measurements feed the feature vector when an analysis is submitted.
type Profile struct {
	Email         string    `json:"email"`
	Age           int       `json:"age"`
	PhoneNumber   string    `json:"phoneNumber"`
	DoctorEmail   string    `json:"doctorEmail"`
	CycleLength   int       `json:"cycleLength"`
	CycleType     string    `json:"cycleType"`
	SkinDarkening bool      `json:"skinDarkening"`
	HairGrowth    bool      `json:"hairGrowth"`
	Pimples       bool      `json:"pimples"`
	HairLoss      bool      `json:"hairLoss"`
	WeightGain    bool      `json:"weightGain"`
	FastFood      bool      `json:"fastFood"`
	HipInch       float64   `json:"hip"`
	WaistInch     float64   `json:"waist"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
