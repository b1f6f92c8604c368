// internal/providers/llamacpp/provider.go
// Package llamacpp provides a ScoreProvider backed by a llama.cpp HTTP server.
//
// The server is expected to run a sequence-classification model with
// `--embeddings --pooling rank`, in which case /embeddings returns the
// classification-head outputs for each input instead of a pooled embedding.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/providers"
)

const (
	dirOut = "PREFBENCH->LLM"
	dirIn  = "LLM->PREFBENCH"
)

// Provider implements the providers.ScoreProvider interface using llama.cpp HTTP APIs.
type Provider struct {
	client  *http.Client
	timeout time.Duration
}

// New constructs a Provider configured with the application's request timeout.
func New(cfg *appconfig.Config) *Provider {
	timeout := cfg.RequestTimeout()
	return &Provider{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: timeout,
	}
}

type modelsResponse struct {
	Data   []llamaModel `json:"data"`
	Models []llamaModel `json:"models"`
}

type llamaModel struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Model  string      `json:"model"`
	Path   string      `json:"path"`
	Status statusField `json:"status"`
}

// EnsureModelReady triggers a load request when the router endpoints are available.
// The load options travel with the request so the router can pick the variant to load.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string, opts providers.LoadOptions) error {
	body, err := json.Marshal(map[string]any{
		"model":             model,
		"quantized":         opts.Quantized,
		"trust_remote_code": opts.TrustRemoteCode,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logging.LogRequest(dirOut, hostIdentifier(host), model, "load", body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host.URL+"/models/load", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	logging.LogRequest(dirIn, hostIdentifier(host), model, "load", respBody)

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		// Single-model server without router endpoints; the model is already resident.
		return nil
	}
	if resp.StatusCode >= 400 {
		if isAlreadyLoadedError(resp.StatusCode, respBody) {
			return p.waitForModelLoaded(ctx, host, model)
		}
		return fmt.Errorf("llama.cpp: /models/load returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return p.waitForModelLoaded(ctx, host, model)
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// Tokenize returns the token ids of text, including the tokenizer's special tokens.
func (p *Provider) Tokenize(ctx context.Context, host appconfig.Host, model, text string) ([]int, error) {
	payload := map[string]any{
		"model":       model,
		"content":     text,
		"add_special": true,
	}
	var parsed tokenizeResponse
	if err := p.postJSON(ctx, host, model, "tokenize", "/tokenize", payload, &parsed); err != nil {
		return nil, err
	}
	return parsed.Tokens, nil
}

type applyTemplateResponse struct {
	Prompt string `json:"prompt"`
}

// ApplyTemplate renders messages with the chat template embedded in the model.
func (p *Provider) ApplyTemplate(ctx context.Context, host appconfig.Host, model string, messages []providers.ChatMessage) (string, error) {
	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	var parsed applyTemplateResponse
	if err := p.postJSON(ctx, host, model, "apply-template", "/apply-template", payload, &parsed); err != nil {
		return "", err
	}
	return parsed.Prompt, nil
}

// Logits tokenizes each text, enforces the length limit, and returns the
// classification-head outputs of one batched /embeddings call.
func (p *Provider) Logits(ctx context.Context, req providers.LogitsRequest) ([][]float64, providers.LogitsMetadata, error) {
	meta := providers.LogitsMetadata{Model: req.Model, BatchSize: len(req.Texts)}
	if len(req.Texts) == 0 {
		return nil, meta, nil
	}

	sequences := make([][]int, len(req.Texts))
	for i, text := range req.Texts {
		tokens, err := p.Tokenize(ctx, req.Host, req.TokenizerName(), text)
		if err != nil {
			return nil, meta, fmt.Errorf("tokenize input %d: %w", i, err)
		}
		tokens, err = fitLength(tokens, req.MaxLength, req.Truncate)
		if err != nil {
			return nil, meta, fmt.Errorf("input %d: %w", i, err)
		}
		sequences[i] = tokens
		meta.Tokens += len(tokens)
	}

	payload := map[string]any{
		"model":   req.Model,
		"content": sequences,
	}

	start := time.Now()
	body, err := p.post(ctx, req.Host, req.Model, "embeddings", "/embeddings", payload)
	if err != nil {
		return nil, meta, err
	}
	meta.Duration = time.Since(start)

	rows, err := parseEmbeddings(body, len(req.Texts))
	if err != nil {
		return nil, meta, err
	}
	return rows, meta, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// fitLength rejects or left-truncates sequences longer than maxLength.
func fitLength(tokens []int, maxLength int, truncate bool) ([]int, error) {
	if maxLength <= 0 || len(tokens) <= maxLength {
		return tokens, nil
	}
	if !truncate {
		return nil, fmt.Errorf("sequence has %d tokens, exceeding max length %d (enable truncation to score it)", len(tokens), maxLength)
	}
	return tokens[len(tokens)-maxLength:], nil
}

type embeddingItem struct {
	Index     int             `json:"index"`
	Embedding json.RawMessage `json:"embedding"`
}

// parseEmbeddings accepts both the native array response and the
// OpenAI-style {"data": [...]} envelope, and both flat and nested vectors.
func parseEmbeddings(body []byte, want int) ([][]float64, error) {
	var items []embeddingItem
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Data []embeddingItem `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("llama.cpp: unrecognized /embeddings response: %w", err)
		}
		items = wrapped.Data
	}
	if len(items) != want {
		return nil, fmt.Errorf("llama.cpp: /embeddings returned %d rows for %d inputs", len(items), want)
	}

	rows := make([][]float64, want)
	for pos, item := range items {
		idx := item.Index
		if idx < 0 || idx >= want || rows[idx] != nil {
			idx = pos
		}
		row, err := decodeVector(item.Embedding)
		if err != nil {
			return nil, fmt.Errorf("llama.cpp: row %d: %w", pos, err)
		}
		rows[idx] = row
	}
	return rows, nil
}

func decodeVector(raw json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	if len(nested) != 1 {
		return nil, fmt.Errorf("expected a pooled vector, got %d rows (is the server running with --pooling rank?)", len(nested))
	}
	return nested[0], nil
}

func (p *Provider) postJSON(ctx context.Context, host appconfig.Host, model, op, path string, payload, out any) error {
	body, err := p.post(ctx, host, model, op, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("llama.cpp: decode %s response: %w", path, err)
	}
	return nil
}

func (p *Provider) post(ctx context.Context, host appconfig.Host, model, op, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	logging.LogRequest(dirOut, hostIdentifier(host), model, op, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest(dirIn, hostIdentifier(host), model, op, raw)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp: %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func parseModels(body []byte) ([]llamaModel, error) {
	var wrapped modelsResponse
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if len(wrapped.Models) > 0 {
			return wrapped.Models, nil
		}
		if len(wrapped.Data) > 0 {
			return wrapped.Data, nil
		}
	}

	var direct []llamaModel
	if err := json.Unmarshal(body, &direct); err == nil && len(direct) > 0 {
		return direct, nil
	}

	return nil, fmt.Errorf("llama.cpp: unrecognized /models response")
}

func modelDisplayName(model llamaModel) string {
	for _, candidate := range []string{model.ID, model.Name, model.Model, model.Path} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}
	return ""
}

type statusField struct {
	Value string
}

func (s *statusField) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		s.Value = ""
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(data, &s.Value)
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Value = obj.Value
	return nil
}

func (p *Provider) fetchModels(ctx context.Context, host appconfig.Host) ([]llamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host.URL+"/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp: /models returned %s", resp.Status)
	}
	return parseModels(body)
}

func (p *Provider) waitForModelLoaded(ctx context.Context, host appconfig.Host, model string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		loaded, err := p.isModelLoaded(ctx, host, model)
		if err != nil {
			return err
		}
		if loaded {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("llama.cpp: model %s did not load before timeout", model)
		case <-ticker.C:
		}
	}
}

func (p *Provider) isModelLoaded(ctx context.Context, host appconfig.Host, model string) (bool, error) {
	models, err := p.fetchModels(ctx, host)
	if err != nil {
		return false, err
	}
	for _, item := range models {
		if strings.EqualFold(modelDisplayName(item), model) {
			return strings.EqualFold(strings.TrimSpace(item.Status.Value), "loaded"), nil
		}
	}
	return false, nil
}

func isAlreadyLoadedError(statusCode int, body []byte) bool {
	if statusCode != http.StatusBadRequest {
		return false
	}
	if strings.Contains(strings.ToLower(string(body)), "already loaded") {
		return true
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return strings.Contains(strings.ToLower(payload.Error.Message), "already loaded")
	}
	return false
}

// hostIdentifier returns a string identifier for a given host, preferring the name over the URL.
func hostIdentifier(host appconfig.Host) string {
	if name := strings.TrimSpace(host.Name); name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "llama.cpp-host"
}
