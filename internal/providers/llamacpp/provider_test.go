// internal/providers/llamacpp/provider_test.go
package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/providers"
)

// newScoringServer fakes a llama.cpp server whose tokenizer emits one token per
// word and whose rank-1 head returns [len(tokens), 1] for every sequence.
func newScoringServer(t *testing.T, embeddingCalls *int32, lastContent *[][]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/load":
			w.WriteHeader(http.StatusNotFound)
		case "/tokenize":
			var req struct {
				Content string `json:"content"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode tokenize: %v", err)
			}
			tokens := make([]int, 0)
			for i := range strings.Fields(req.Content) {
				tokens = append(tokens, i+1)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"tokens": tokens})
		case "/embeddings":
			atomic.AddInt32(embeddingCalls, 1)
			var req struct {
				Content [][]int `json:"content"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode embeddings: %v", err)
			}
			if lastContent != nil {
				*lastContent = req.Content
			}
			out := make([]map[string]any, 0, len(req.Content))
			for i, seq := range req.Content {
				out = append(out, map[string]any{"index": i, "embedding": [][]float64{{float64(len(seq)), 1}}})
			}
			_ = json.NewEncoder(w).Encode(out)
		case "/apply-template":
			var req struct {
				Messages []providers.ChatMessage `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode apply-template: %v", err)
			}
			var b strings.Builder
			for _, m := range req.Messages {
				b.WriteString("<" + m.Role + ">" + m.Content)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"prompt": b.String()})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLogitsSingleBatchedForwardPass(t *testing.T) {
	t.Parallel()

	var calls int32
	var content [][]int
	server := newScoringServer(t, &calls, &content)
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	rows, meta, err := provider.Logits(context.Background(), providers.LogitsRequest{
		Host:      appconfig.Host{Name: "test", URL: server.URL},
		Model:     "rm",
		Texts:     []string{"one two", "one two three"},
		MaxLength: 8,
	})
	if err != nil {
		t.Fatalf("Logits error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one forward pass, got %d", got)
	}
	if diff := cmp.Diff([][]float64{{2, 1}, {3, 1}}, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if meta.BatchSize != 2 || meta.Tokens != 5 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if len(content) != 2 {
		t.Fatalf("expected token arrays to be sent, got %v", content)
	}
}

func TestLogitsLengthLimit(t *testing.T) {
	t.Parallel()

	var calls int32
	var content [][]int
	server := newScoringServer(t, &calls, &content)
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	req := providers.LogitsRequest{
		Host:      appconfig.Host{URL: server.URL},
		Model:     "rm",
		Texts:     []string{"a b c d e"},
		MaxLength: 3,
	}
	if _, _, err := provider.Logits(context.Background(), req); err == nil {
		t.Fatal("expected overlong input to fail without truncation")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("no forward pass should run when a batch is malformed")
	}

	req.Truncate = true
	rows, _, err := provider.Logits(context.Background(), req)
	if err != nil {
		t.Fatalf("Logits with truncation: %v", err)
	}
	if diff := cmp.Diff([][]int{{3, 4, 5}}, content); diff != "" {
		t.Fatalf("expected left truncation (-want +got):\n%s", diff)
	}
	if rows[0][0] != 3 {
		t.Fatalf("expected truncated length in logits, got %v", rows[0])
	}
}

func TestLogitsEmptyBatch(t *testing.T) {
	t.Parallel()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	rows, meta, err := provider.Logits(context.Background(), providers.LogitsRequest{Model: "rm"})
	if err != nil || rows != nil || meta.BatchSize != 0 {
		t.Fatalf("expected empty result, got %v %+v %v", rows, meta, err)
	}
}

func TestApplyTemplate(t *testing.T) {
	t.Parallel()

	var calls int32
	server := newScoringServer(t, &calls, nil)
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	prompt, err := provider.ApplyTemplate(context.Background(), appconfig.Host{URL: server.URL}, "rm", []providers.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("ApplyTemplate error: %v", err)
	}
	if prompt != "<user>hi<assistant>hello" {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}

func TestEnsureModelReadyWaitsForLoad(t *testing.T) {
	t.Parallel()

	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/load":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
		case "/models":
			status := "loading"
			if atomic.AddInt32(&polls, 1) > 1 {
				status = "loaded"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"id": "rm", "status": map[string]string{"value": status}}},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	if err := provider.EnsureModelReady(context.Background(), appconfig.Host{URL: server.URL}, "rm", providers.LoadOptions{}); err != nil {
		t.Fatalf("EnsureModelReady error: %v", err)
	}
	if atomic.LoadInt32(&polls) < 2 {
		t.Fatalf("expected polling until loaded, got %d polls", polls)
	}
}

func TestEnsureModelReadyWithoutRouter(t *testing.T) {
	t.Parallel()

	var calls int32
	server := newScoringServer(t, &calls, nil)
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	if err := provider.EnsureModelReady(context.Background(), appconfig.Host{URL: server.URL}, "rm", providers.LoadOptions{}); err != nil {
		t.Fatalf("expected 404 from /models/load to be tolerated, got %v", err)
	}
}

func TestEnsureModelReadySendsLoadOptions(t *testing.T) {
	t.Parallel()

	loads := make(chan map[string]any, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/load":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode load: %v", err)
			}
			loads <- body
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	host := appconfig.Host{URL: server.URL}
	for _, opts := range []providers.LoadOptions{{Quantized: true}, {TrustRemoteCode: true}} {
		if err := provider.EnsureModelReady(context.Background(), host, "rm", opts); err != nil {
			t.Fatalf("EnsureModelReady error: %v", err)
		}
	}

	want := []map[string]any{
		{"model": "rm", "quantized": true, "trust_remote_code": false},
		{"model": "rm", "quantized": false, "trust_remote_code": true},
	}
	for i, w := range want {
		if diff := cmp.Diff(w, <-loads); diff != "" {
			t.Fatalf("load %d payload mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestPostReportsServerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"input is too large"}`))
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	_, err := provider.Tokenize(context.Background(), appconfig.Host{URL: server.URL}, "rm", "text")
	if err == nil || !strings.Contains(err.Error(), "input is too large") {
		t.Fatalf("expected server error body in error, got %v", err)
	}
}
