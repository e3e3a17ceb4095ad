package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModelStatus is one entry of the model service's local model list.
type ModelStatus struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Size  int64  `json:"size"`
}

// ModelsResponse is the response of the /api/tags endpoint.
type ModelsResponse struct {
	Models []ModelStatus `json:"models"`
}

// ModelChecker asks the model service which models it has available.
type ModelChecker struct {
	baseURL string
	client  *http.Client
}

// NewModelChecker creates a new model checker.
func NewModelChecker(baseURL string) *ModelChecker {
	return &ModelChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// HasModel reports whether modelName is available locally. A name without a
// tag matches any tag of that model.
func (mc *ModelChecker) HasModel(ctx context.Context, modelName string) (bool, error) {
	url := fmt.Sprintf("%s/api/tags", mc.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := mc.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to list models: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return false, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return false, fmt.Errorf("failed to decode models response: %w", err)
	}

	for _, m := range modelsResp.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name == modelName {
			return true, nil
		}
		if !strings.Contains(modelName, ":") && strings.SplitN(name, ":", 2)[0] == modelName {
			return true, nil
		}
	}

	return false, nil
}
