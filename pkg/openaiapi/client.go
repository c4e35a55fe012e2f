// Package openaiapi provides the remote model backends over any
// OpenAI-compatible HTTP API (Groq, OpenAI, vLLM). Calls run behind a
// circuit breaker so a flapping upstream fails fast instead of piling
// up blocked requests.
package openaiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/finsightai/finsight/engine/domain"
)

const defaultTimeout = 60 * time.Second

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// client is the shared HTTP plumbing for both backends.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func (c *client) post(ctx context.Context, path string, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	_, err = c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{code: resp.StatusCode}
		}
		return nil, json.NewDecoder(resp.Body).Decode(respBody)
	})
	return err
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

// Embedder implements rag.Embedder against an OpenAI-compatible
// /embeddings endpoint.
type Embedder struct {
	client
	model string
	dims  int
}

// NewEmbedder creates a remote embedding client. The key is required;
// a missing key is a configuration error surfaced at startup rather
// than on the first request.
func NewEmbedder(baseURL, apiKey, model string, dims int, timeout time.Duration, logger *slog.Logger) (*Embedder, error) {
	if apiKey == "" {
		return nil, domain.Wrapf(domain.ErrConfiguration, "openaiapi.NewEmbedder", "missing API key")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		client: client{
			baseURL: baseURL,
			apiKey:  apiKey,
			http:    &http.Client{Timeout: timeout},
			breaker: newBreaker("embeddings", logger),
		},
		model: model,
		dims:  dims,
	}, nil
}

func (e *Embedder) Model() string   { return e.model }
func (e *Embedder) Dimensions() int { return e.dims }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements rag.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "openaiapi.Embed"

	var out embeddingsResponse
	err := e.post(ctx, "/embeddings", embeddingsRequest{Model: e.model, Input: []string{text}}, &out)
	if err != nil {
		return nil, domain.Wrap(domain.ErrEmbedding, op, err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, domain.Wrapf(domain.ErrEmbedding, op, "empty embedding from model %s", e.model)
	}
	return out.Data[0].Embedding, nil
}

// Synthesizer implements rag.Synthesizer against an OpenAI-compatible
// /chat/completions endpoint.
type Synthesizer struct {
	client
	model string
}

// NewSynthesizer creates a remote chat client.
func NewSynthesizer(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, domain.Wrapf(domain.ErrConfiguration, "openaiapi.NewSynthesizer", "missing API key")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		client: client{
			baseURL: baseURL,
			apiKey:  apiKey,
			http:    &http.Client{Timeout: timeout},
			breaker: newBreaker("chat", logger),
		},
		model: model,
	}, nil
}

type completionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionsResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Synthesize implements rag.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (string, error) {
	const op = "openaiapi.Synthesize"

	var out completionsResponse
	err := s.post(ctx, "/chat/completions", completionsRequest{
		Model:       s.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}, &out)
	if err != nil {
		return "", domain.Wrap(domain.ErrSynthesis, op, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", domain.Wrapf(domain.ErrSynthesis, op, "empty reply from model %s", s.model)
	}
	return out.Choices[0].Message.Content, nil
}
