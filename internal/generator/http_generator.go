package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// HTTPGenerator calls an external generation provider over HTTP. The provider
// contract is a single POST /generate accepting the subject parameters and
// returning a question array, possibly shorter than requested.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPGenerator creates a generator client against the given base URL.
func NewHTTPGenerator(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "http_generator").Logger(),
	}
}

var _ QuestionGenerator = (*HTTPGenerator)(nil)

type generateRequest struct {
	Subject       string `json:"subject"`
	Count         int    `json:"count"`
	AudienceLevel string `json:"audience_level"`
	Language      string `json:"language"`
}

type generateResponse struct {
	Questions []GeneratedQuestion `json:"questions"`
}

// Generate requests count questions for a subject.
func (g *HTTPGenerator) Generate(ctx context.Context, subject model.SubjectSpec) ([]GeneratedQuestion, error) {
	body, err := json.Marshal(generateRequest{
		Subject:       subject.Name,
		Count:         subject.QuestionCount,
		AudienceLevel: subject.AudienceLevel,
		Language:      subject.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	g.log.Debug().
		Str("subject", subject.Name).
		Int("requested", subject.QuestionCount).
		Int("received", len(out.Questions)).
		Msg("Subject generated")

	return out.Questions, nil
}
