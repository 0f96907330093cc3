// Package embedding provides the text-embedding provider interface, an
// OpenAI-compatible HTTP implementation, and a hot-cache-backed wrapper with
// stampede control.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vldmrch/pharmsync/pkg/config"
)

// Provider turns text into a fixed-length float vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HTTPProvider calls an OpenAI-compatible embeddings endpoint.
type HTTPProvider struct {
	cfg    config.EmbeddingConfig
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPProvider creates a provider for the configured endpoint. The HTTP
// client keeps the provider's default timeout semantics (no client-side
// deadline beyond the caller's context).
func NewHTTPProvider(cfg config.EmbeddingConfig) *HTTPProvider {
	return &HTTPProvider{
		cfg:    cfg,
		http:   &http.Client{},
		logger: slog.Default().With("component", "embedding-provider"),
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for the given text. Input longer than
// the configured budget is truncated at a rune boundary before the call.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.cfg.MaxChars > 0 {
		if runes := []rune(text); len(runes) > p.cfg.MaxChars {
			text = string(runes[:p.cfg.MaxChars])
		}
	}
	payload, err := json.Marshal(embedRequest{Model: p.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}
	vector := decoded.Data[0].Embedding
	if p.cfg.Dimensions > 0 && len(vector) != p.cfg.Dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vector), p.cfg.Dimensions)
	}
	return vector, nil
}
