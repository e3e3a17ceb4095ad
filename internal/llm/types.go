package llm

import "fmt"

// Sampling defaults used for answer generation.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// GenerateRequest is the payload of the completion endpoint.
type GenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// GenerateResponse is the non-streaming completion response.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// StatusError reports a non-success status from the model service.
// It means the service answered, so callers can treat it differently from
// a transport failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.StatusCode, e.Body)
}
