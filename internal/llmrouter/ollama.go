package llmrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider asks a local or remote Ollama model to classify a
// file, adapted from the teacher's OllamaLLMAdapter generate call: same
// baseURL-defaulting constructor, same plain /api/generate request,
// except the prompt asks for a structured category path instead of
// free text.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider builds a classification provider backed by
// Ollama's /api/generate endpoint.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OllamaProvider) Name() string           { return "ollama:" + p.model }
func (p *OllamaProvider) MaxConfidence() float64 { return 1.0 }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type classifyOutput struct {
	CategoryPath []string `json:"category_path"`
	Confidence   float64  `json:"confidence"`
	Rationale    string   `json:"rationale"`
}

func (p *OllamaProvider) Classify(ctx context.Context, req Request) (Response, error) {
	prompt := buildPrompt(req)
	body := ollamaGenerateRequest{Model: p.model, Prompt: prompt, Stream: false, Format: "json"}

	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}

	var out classifyOutput
	if err := json.Unmarshal([]byte(genResp.Response), &out); err != nil {
		return Response{}, fmt.Errorf("parsing structured output: %w", err)
	}

	return Response{CategoryPath: out.CategoryPath, Confidence: out.Confidence, Rationale: out.Rationale}, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Classify the following file into one of the candidate categories, or propose a new one.\n")
	fmt.Fprintf(&sb, "Filename: %s\n", req.Filename)
	fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(req.Keywords, ", "))
	if req.TextExcerpt != "" {
		fmt.Fprintf(&sb, "Excerpt: %s\n", req.TextExcerpt)
	}
	fmt.Fprintf(&sb, "Candidates: %s\n", strings.Join(req.CandidateCategories, ", "))
	sb.WriteString(`Respond as JSON: {"category_path": ["..."], "confidence": 0.0, "rationale": "..."}`)
	return sb.String()
}
