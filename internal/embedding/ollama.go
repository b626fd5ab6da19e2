package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaService is a provider-backed embedding implementation, adapted
// from the teacher's adapters/embedding/ollama.go: same constructor
// defaulting, same request/response shape. Per spec.md §1, concrete
// LLM vendor payloads are an out-of-scope external collaborator; this
// type exists only to give the "provider-backed" option from §4.2 a
// home, normalizing whatever dimension/magnitude the backend returns
// to the unit-vector contract every Service implementation promises.
type OllamaService struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
	log     *zap.SugaredLogger
}

// NewOllamaService builds an OllamaService, defaulting baseURL/model
// exactly as the teacher's NewOllamaAdapter does.
func NewOllamaService(baseURL, model string, dim int, log *zap.SugaredLogger) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dim <= 0 {
		dim = 128
	}
	return &OllamaService{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

func (s *OllamaService) Dimension() int  { return s.dim }
func (s *OllamaService) ModelID() string { return "ollama:" + s.model }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (s *OllamaService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return zeroVector(s.dim), nil
	}
	s.log.Debugw("embedding request", "base_url", s.baseURL, "model", s.model)

	body, err := json.Marshal(ollamaEmbedRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return normalizeF32(out.Embedding), nil
}

func (s *OllamaService) EmbedFilename(ctx context.Context, tokens []string) ([]float32, error) {
	return s.EmbedText(ctx, strings.Join(tokens, " "))
}

// normalizeF32 L2-normalizes a vector returned by an external provider
// so every Service implementation upholds the "magnitude = 1 ± 1e-6"
// contract regardless of what the backend actually returned.
func normalizeF32(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
