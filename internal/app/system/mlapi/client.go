// internal/app/system/mlapi/client.go

// Package mlapi is the HTTP client for the external demand-prediction
// service. Unlike the activity dispatch path, prediction calls are
// synchronous: the dashboard is waiting on the result, so errors are
// returned to the caller.
package mlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PredictRequest is the body sent to the prediction service.
type PredictRequest struct {
	Branch     string   `json:"branch,omitempty"`
	ProductIDs []string `json:"productIds"`
	Horizon    string   `json:"horizon,omitempty"` // e.g. "7d", "30d"
}

// PredictResponse is the prediction service's reply.
type PredictResponse struct {
	Predictions []ProductPrediction `json:"predictions"`
	ModelTag    string              `json:"modelTag,omitempty"`
}

// ProductPrediction is one product's predicted demand.
type ProductPrediction struct {
	ProductID string  `json:"productId"`
	Expected  float64 `json:"expected"`
	Low       float64 `json:"low,omitempty"`
	High      float64 `json:"high,omitempty"`
}

// Client calls the prediction service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// New creates a prediction Client.
func New(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// Predict requests demand predictions for the given products.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("prediction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read prediction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction service returned %d", resp.StatusCode)
	}

	var out PredictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}

	c.log.Info("prediction generated",
		zap.Int("products", len(req.ProductIDs)),
		zap.String("horizon", req.Horizon),
		zap.Duration("took", time.Since(start)))
	return &out, nil
}
