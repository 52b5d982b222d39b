package analyses

import "time"

// Analysis lifecycle statuses. An analysis starts PENDING when submitted,
// moves to ML_PROCESSING when a worker picks it up, ML_PROCESSED once the
// model result is stored, and COMPLETED when a doctor files the report.
// ML_FAILED is terminal until a manual retry resets the record.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "ML_PROCESSING"
	StatusProcessed  = "ML_PROCESSED"
	StatusFailed     = "ML_FAILED"
	StatusCompleted  = "COMPLETED"
)

// Model prediction labels.
const (
	PredictionPCOS   = "PCOS"
	PredictionNoPCOS = "NO_PCOS"
)

// ProfileSnapshot is the questionnaire state frozen into the analysis at
// submission time, so later profile edits cannot change a scored record.
type ProfileSnapshot struct {
	Age           int     `json:"age"`
	CycleLength   int     `json:"cycleLength"`
	CycleType     string  `json:"cycleType"`
	SkinDarkening bool    `json:"skinDarkening"`
	HairGrowth    bool    `json:"hairGrowth"`
	Pimples       bool    `json:"pimples"`
	HairLoss      bool    `json:"hairLoss"`
	WeightGain    bool    `json:"weightGain"`
	FastFood      bool    `json:"fastFood"`
	HipInch       float64 `json:"hip"`
	WaistInch     float64 `json:"waist"`
}

// ReadingSnapshot is the staged device reading frozen into the analysis.
type ReadingSnapshot struct {
	SpO2        float64   `json:"spo2"`
	Temperature float64   `json:"temperature"`
	HeartRate   int       `json:"heartRate"`
	HeightCm    float64   `json:"height"`
	WeightKg    float64   `json:"weight"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// MLResult is the stored model output for an analysis.
type MLResult struct {
	Prediction      string    `json:"prediction"`
	ConfidenceScore float64   `json:"confidenceScore"`
	ModelVersion    string    `json:"modelVersion"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Report is the doctor's final verdict on a scored analysis.
type Report struct {
	FinalVerdict string    `json:"finalVerdict"`
	Prescription string    `json:"prescription"`
	Notes        string    `json:"notes"`
	ApprovedAt   time.Time `json:"approvedAt"`
}

// Analysis is a durable screening record.
type Analysis struct {
	ID        string          `json:"id"`
	PatientID string          `json:"patientId"`
	DoctorID  string          `json:"doctorId"`
	Status    string          `json:"status"`
	Profile   ProfileSnapshot `json:"profile"`
	Reading   ReadingSnapshot `json:"reading"`
	MLResult  *MLResult       `json:"mlResult,omitempty"`
	Report    *Report         `json:"report,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DashboardMetrics summarizes a doctor's queue.
type DashboardMetrics struct {
	TotalAssigned   int `json:"totalAssigned"`
	AwaitingReview  int `json:"awaitingReview"`
	PositiveScreens int `json:"positiveScreens"`
	Completed       int `json:"completed"`
}
