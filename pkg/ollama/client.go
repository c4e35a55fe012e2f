// Package ollama provides the local in-process model backends: an
// embedding provider and an answer synthesizer over Ollama's HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/finsightai/finsight/engine/domain"
)

const defaultTimeout = 60 * time.Second

// Embedder implements rag.Embedder against a local Ollama server.
type Embedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewEmbedder creates an embedding client. dims must match what the
// model actually produces; the ingest pipeline verifies every vector.
func NewEmbedder(baseURL, model string, dims int, timeout time.Duration) *Embedder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Embedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *Embedder) Model() string   { return e.model }
func (e *Embedder) Dimensions() int { return e.dims }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements rag.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "ollama.Embed"

	body, _ := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, domain.Wrap(domain.ErrEmbedding, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.ErrEmbedding, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Wrapf(domain.ErrEmbedding, op, "status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Wrap(domain.ErrEmbedding, op, err)
	}
	if len(out.Embedding) == 0 {
		return nil, domain.Wrapf(domain.ErrEmbedding, op, "empty embedding from model %s", e.model)
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Synthesizer implements rag.Synthesizer against a local Ollama server.
type Synthesizer struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewSynthesizer creates a chat client with the given request timeout.
func NewSynthesizer(baseURL, model string, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Synthesizer{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Synthesize implements rag.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (string, error) {
	const op = "ollama.Synthesize"

	body, _ := json.Marshal(chatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  chatOptions{Temperature: 0},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", domain.Wrap(domain.ErrSynthesis, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", domain.Wrap(domain.ErrSynthesis, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.Wrapf(domain.ErrSynthesis, op, "status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.Wrap(domain.ErrSynthesis, op, err)
	}
	if out.Message.Content == "" {
		return "", domain.Wrapf(domain.ErrSynthesis, op, "empty reply from model %s", s.model)
	}
	return out.Message.Content, nil
}
