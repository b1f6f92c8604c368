// internal/providers/llamacpp/provider_helpers_test.go
package llamacpp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mwiater/prefbench/internal/appconfig"
)

func TestParseModelsVariants(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{name: "wrapped models", data: `{"models":[{"id":"m1"},{"name":"m2"}]}`, want: []string{"m1", "m2"}},
		{name: "wrapped data", data: `{"data":[{"model":"m3"},{"path":"m4.gguf"}]}`, want: []string{"m3", "m4.gguf"}},
		{name: "direct array", data: `[{"id":"m5"},{"name":"m6"}]`, want: []string{"m5", "m6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models, err := parseModels([]byte(tt.data))
			if err != nil {
				t.Fatalf("parseModels error: %v", err)
			}
			if len(models) != len(tt.want) {
				t.Fatalf("expected %d models, got %d", len(tt.want), len(models))
			}
			for i, want := range tt.want {
				if got := modelDisplayName(models[i]); got != want {
					t.Fatalf("model %d name = %q, want %q", i, got, want)
				}
			}
		})
	}

	if _, err := parseModels([]byte(`{"unexpected":true}`)); err == nil {
		t.Fatal("expected error for unrecognized payload")
	}
}

func TestStatusFieldUnmarshalJSON(t *testing.T) {
	var s statusField
	if err := s.UnmarshalJSON([]byte(`"loaded"`)); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if s.Value != "loaded" {
		t.Fatalf("expected loaded, got %q", s.Value)
	}
	if err := s.UnmarshalJSON([]byte(`{"value":"unloaded"}`)); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if s.Value != "unloaded" {
		t.Fatalf("expected unloaded, got %q", s.Value)
	}
	if err := s.UnmarshalJSON([]byte(`null`)); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if s.Value != "" {
		t.Fatalf("expected empty value, got %q", s.Value)
	}
}

func TestIsAlreadyLoadedError(t *testing.T) {
	body := []byte(`{"error":{"message":"model already loaded"}}`)
	if !isAlreadyLoadedError(400, body) {
		t.Fatal("expected already loaded match")
	}
	if isAlreadyLoadedError(500, body) {
		t.Fatal("expected false for non-400 status")
	}
	if isAlreadyLoadedError(400, []byte(`{"error":{"message":"bad request"}}`)) {
		t.Fatal("expected false for unrelated error")
	}
}

func TestFitLength(t *testing.T) {
	tokens := []int{1, 2, 3, 4, 5}

	got, err := fitLength(tokens, 10, false)
	if err != nil || len(got) != 5 {
		t.Fatalf("short sequence should pass through, got %v, %v", got, err)
	}
	if _, err := fitLength(tokens, 3, false); err == nil {
		t.Fatal("expected error for overlong sequence without truncation")
	}
	got, err = fitLength(tokens, 3, true)
	if err != nil {
		t.Fatalf("fitLength error: %v", err)
	}
	if diff := cmp.Diff([]int{3, 4, 5}, got); diff != "" {
		t.Fatalf("truncation must keep the tail (-want +got):\n%s", diff)
	}
	got, err = fitLength(tokens, 0, false)
	if err != nil || len(got) != 5 {
		t.Fatalf("max length 0 disables the check, got %v, %v", got, err)
	}
}

func TestParseEmbeddings(t *testing.T) {
	tests := []struct {
		name string
		data string
		want [][]float64
	}{
		{
			name: "native nested",
			data: `[{"index":0,"embedding":[[0.5,-1]]},{"index":1,"embedding":[[2,3]]}]`,
			want: [][]float64{{0.5, -1}, {2, 3}},
		},
		{
			name: "openai envelope out of order",
			data: `{"data":[{"index":1,"embedding":[2,3]},{"index":0,"embedding":[0.5,-1]}]}`,
			want: [][]float64{{0.5, -1}, {2, 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEmbeddings([]byte(tt.data), 2)
			if err != nil {
				t.Fatalf("parseEmbeddings error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := parseEmbeddings([]byte(`[{"index":0,"embedding":[1,2]}]`), 2); err == nil {
		t.Fatal("expected row count mismatch error")
	}
	if _, err := parseEmbeddings([]byte(`[{"index":0,"embedding":[[1,2],[3,4]]}]`), 1); err == nil {
		t.Fatal("expected error for unpooled token embeddings")
	}
}

func TestHostIdentifier(t *testing.T) {
	if got := hostIdentifier(appconfig.Host{Name: " scorer ", URL: "http://x"}); got != "scorer" {
		t.Fatalf("expected name, got %q", got)
	}
	if got := hostIdentifier(appconfig.Host{URL: "http://x"}); got != "http://x" {
		t.Fatalf("expected url, got %q", got)
	}
	if got := hostIdentifier(appconfig.Host{}); got != "llama.cpp-host" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
