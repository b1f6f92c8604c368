package metrics

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/providers"
)

func TestRunningStat(t *testing.T) {
	var rs RunningStat
	for _, v := range []float64{2, -1, 0, 5} {
		rs.Add(v)
	}
	if rs.Count != 4 || rs.Mean != 1.5 {
		t.Fatalf("unexpected count/mean: %+v", rs)
	}
	if rs.Min != -1 || rs.Max != 5 {
		t.Fatalf("unexpected bounds: %+v", rs)
	}
	// population variance of {2,-1,0,5}: ((0.5)^2+(2.5)^2+(1.5)^2+(3.5)^2)/4 = 5.25
	if math.Abs(rs.Variance()-5.25) > 1e-12 {
		t.Fatalf("expected variance 5.25, got %v", rs.Variance())
	}
	if math.Abs(rs.StdDev()-math.Sqrt(5.25)) > 1e-12 {
		t.Fatalf("unexpected stddev %v", rs.StdDev())
	}

	var single RunningStat
	single.Add(3)
	if single.Variance() != 0 {
		t.Fatalf("single sample variance must be 0, got %v", single.Variance())
	}
}

func TestGetBucket(t *testing.T) {
	cases := map[int]string{0: "0-1024", 1024: "0-1024", 1025: "1025-4096", 5000: "4097-16384", 20000: "16384+"}
	for tokens, want := range cases {
		if got := getBucket(tokens); got != want {
			t.Fatalf("getBucket(%d) = %q, want %q", tokens, got, want)
		}
	}
}

type stubProvider struct {
	closed bool
}

func (s *stubProvider) EnsureModelReady(context.Context, appconfig.Host, string, providers.LoadOptions) error {
	return nil
}
func (s *stubProvider) Tokenize(context.Context, appconfig.Host, string, string) ([]int, error) {
	return []int{1}, nil
}
func (s *stubProvider) ApplyTemplate(context.Context, appconfig.Host, string, []providers.ChatMessage) (string, error) {
	return "", nil
}
func (s *stubProvider) Logits(_ context.Context, req providers.LogitsRequest) ([][]float64, providers.LogitsMetadata, error) {
	rows := make([][]float64, len(req.Texts))
	for i := range rows {
		rows[i] = []float64{1, 1}
	}
	return rows, providers.LogitsMetadata{Model: req.Model, BatchSize: len(req.Texts), Tokens: 10, Duration: 500 * time.Millisecond}, nil
}
func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestProviderRecordsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "perf.json")
	stub := &stubProvider{}
	provider := NewProvider(stub, NewAggregator(path))

	for i := 0; i < 2; i++ {
		if _, _, err := provider.Logits(context.Background(), providers.LogitsRequest{Model: "rm", Texts: []string{"a", "b"}}); err != nil {
			t.Fatalf("Logits error: %v", err)
		}
	}

	snap, ok := provider.aggregator.Snapshot("rm")
	if !ok {
		t.Fatal("expected metrics for rm")
	}
	if snap.OverallStats.TotalRequests != 2 || snap.OverallStats.SequencesPerSecond.Mean != 4 {
		t.Fatalf("unexpected stats: %+v", snap.OverallStats)
	}

	if err := provider.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !stub.closed {
		t.Fatal("expected wrapped provider to be closed")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	var saved []ModelMetrics
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if len(saved) != 1 || saved[0].OverallStats.BatchSize.Count != 2 {
		t.Fatalf("unexpected saved metrics: %+v", saved)
	}

	reloaded := NewAggregator(path)
	if snap, ok := reloaded.Snapshot("rm"); !ok || snap.OverallStats.TotalRequests != 2 {
		t.Fatalf("expected persisted stats to reload, got %+v", snap)
	}
}
