package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient implements Client against the FastAPI inference service.
type HTTPClient struct {
	httpClient *resty.Client
	url        string
}

// predictionBody mirrors the wire response; pointer fields distinguish a
// missing field from a zero value.
type predictionBody struct {
	PCOSPrediction  *int     `json:"pcos_prediction"`
	ConfidenceScore *float64 `json:"confidence_score"`
}

// NewHTTPClient constructs an inference client with a hard request timeout.
func NewHTTPClient(url, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ML_SERVICE_URL is required")
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		client.SetHeader("x-api-key", apiKey)
	}

	return &HTTPClient{httpClient: client, url: url}, nil
}

// Predict posts the feature vector and validates the response contract.
// Non-2xx status, timeout, and missing response fields are all failures;
// the queue's retry policy owns recovery.
func (c *HTTPClient) Predict(ctx context.Context, features FeatureVector) (Prediction, error) {
	var body predictionBody
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(features).
		SetResult(&body).
		Post(c.url)
	if err != nil {
		return Prediction{}, fmt.Errorf("ml inference request: %w", err)
	}
	if !resp.IsSuccess() {
		return Prediction{}, fmt.Errorf("ml inference status %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	if body.PCOSPrediction == nil || body.ConfidenceScore == nil {
		return Prediction{}, fmt.Errorf("ml inference response missing required fields")
	}
	return Prediction{
		PCOSPrediction:  *body.PCOSPrediction,
		ConfidenceScore: *body.ConfidenceScore,
	}, nil
}

var _ Client = (*HTTPClient)(nil)
