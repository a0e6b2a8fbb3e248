// Package tfserving provides a model adapter for the TensorFlow Serving REST
// API. Each Client addresses one served model and one signature.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const defaultBaseURL = "http://localhost:8501"

// Input tensor names shared by both exported models.
const (
	InputGeneral = "input_general"
	InputMel     = "input_mel"
)

type Client struct {
	baseURL    string
	model      string
	signature  string
	httpClient *http.Client
}

var _ ports.Model = (*Client)(nil)

type predictRequest struct {
	SignatureName string                 `json:"signature_name,omitempty"`
	Inputs        map[string][][]float64 `json:"inputs"`
}

type predictResponse struct {
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error,omitempty"`
}

// NewClient targets model at baseURL. signature selects the exported
// signature ("serving_default" when empty). httpClient may be nil.
func NewClient(baseURL, model, signature string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		signature:  signature,
		httpClient: httpClient,
	}
}

// Predict sends one example and returns the class probabilities.
func (c *Client) Predict(ctx context.Context, in ports.ModelInputs) ([]float64, error) {
	if len(in.General) == 0 {
		return nil, errors.New("tfserving: empty general input")
	}

	payload := predictRequest{
		SignatureName: c.signature,
		Inputs:        map[string][][]float64{InputGeneral: {in.General}},
	}
	if in.Mel != nil {
		payload.Inputs[InputMel] = [][]float64{in.Mel}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tfserving: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tfserving: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tfserving: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tfserving: read response: %w", err)
	}

	var parsed predictResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && parsed.Error != "" {
			return nil, fmt.Errorf("tfserving: status %d: %s", resp.StatusCode, parsed.Error)
		}
		return nil, fmt.Errorf("tfserving: unexpected status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("tfserving: decode response: %w", decodeErr)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("tfserving: %s", parsed.Error)
	}

	return firstRow(parsed.Outputs)
}

// firstRow accepts both columnar output shapes: a bare batch
// ([[p0, p1, ...]]) and a single named output ({"name": [[...]]}).
func firstRow(outputs json.RawMessage) ([]float64, error) {
	if len(outputs) == 0 {
		return nil, errors.New("tfserving: response has no outputs")
	}

	var batch [][]float64
	if err := json.Unmarshal(outputs, &batch); err == nil {
		return pickRow(batch)
	}

	var named map[string][][]float64
	if err := json.Unmarshal(outputs, &named); err != nil {
		return nil, fmt.Errorf("tfserving: decode outputs: %w", err)
	}
	if len(named) != 1 {
		return nil, fmt.Errorf("tfserving: expected one named output, got %d", len(named))
	}
	for _, rows := range named {
		return pickRow(rows)
	}
	return nil, errors.New("tfserving: response has no outputs")
}

func pickRow(batch [][]float64) ([]float64, error) {
	if len(batch) != 1 || len(batch[0]) == 0 {
		return nil, fmt.Errorf("tfserving: expected a single non-empty output row, got %d rows", len(batch))
	}
	return batch[0], nil
}
