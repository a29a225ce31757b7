// ABOUTME: Ollama native model management used before the service reports ready
// ABOUTME: Pulls a missing chat model through POST /api/pull
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
)

// ModelPuller downloads models into a local Ollama server
type ModelPuller struct {
	client  *http.Client
	baseURL string
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewModelPuller creates a puller for the Ollama server at baseURL (no /v1
// suffix). Downloads can take minutes, so the only deadline is the caller's ctx.
func NewModelPuller(baseURL string) *ModelPuller {
	return &ModelPuller{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// PullModel blocks until Ollama has the model or reports why it cannot
func (p *ModelPuller) PullModel(ctx context.Context, model string) error {
	body, err := json.Marshal(pullRequest{Model: model, Stream: false})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &core.ConnectivityError{Service: "ollama", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pull %s: ollama error (status %d): %s", model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("pull %s: decode response: %w", model, err)
	}
	if out.Error != "" {
		return fmt.Errorf("pull %s: %s", model, out.Error)
	}
	if out.Status != "success" {
		return fmt.Errorf("pull %s: unexpected status %q", model, out.Status)
	}
	return nil
}

// HasModel reports whether model is among names. A bare name matches its
// ":latest" tag the way Ollama resolves it.
func HasModel(names []string, model string) bool {
	for _, name := range names {
		if name == model || name == model+":latest" || model == name+":latest" {
			return true
		}
	}
	return false
}
