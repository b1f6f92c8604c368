// internal/appconfig/appconfig_test.go
package appconfig

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// TestValidate verifies that hosts without a url are rejected while an empty
// host list is left to the commands that need a host.
func TestValidate(t *testing.T) {
	valid := Config{Hosts: []Host{{Name: "scorer", URL: "http://localhost:8080", Type: "llama.cpp"}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() with valid config failed: %v", err)
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("Validate() with no hosts failed: %v", err)
	}
	missing := Config{Hosts: []Host{valid.Hosts[0], {Name: "a", URL: "  "}}}
	if err := missing.Validate(); err == nil || !strings.Contains(err.Error(), "host 1 (a) has no url") {
		t.Fatalf("expected error naming the host without a url, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config
	if cfg.RequestTimeout() != 600*time.Second {
		t.Fatalf("expected default request timeout of 600s, got %v", cfg.RequestTimeout())
	}
	if got := cfg.LogFilePath(); got != "prefbench.log" {
		t.Fatalf("LogFilePath default = %q", got)
	}
	if got := cfg.ResultsDir(); got != "results/" {
		t.Fatalf("ResultsDir default = %q", got)
	}

	sweep := cfg.SweepSettings()
	if sweep.JobsDir != "beaker_configs/auto_created" || sweep.Workspace != "ai2/rewardbench" {
		t.Fatalf("unexpected sweep defaults: %+v", sweep)
	}
	if sweep.Launcher != "python" || sweep.SubmitBin != "beaker" {
		t.Fatalf("unexpected launcher defaults: %+v", sweep)
	}

	cfg.Sweep.Image = "custom/image"
	if got := cfg.SweepSettings().Image; got != "custom/image" {
		t.Fatalf("expected configured image to win, got %q", got)
	}
}

func TestFindHost(t *testing.T) {
	cfg := Config{Hosts: []Host{
		{Name: "a", URL: "http://a", Models: []string{"m1"}},
		{Name: "b", URL: "http://b", Models: []string{"m2"}},
	}}

	host, err := cfg.FindHost("m2")
	if err != nil || host.Name != "b" {
		t.Fatalf("FindHost(m2) = %+v, %v", host, err)
	}
	host, err = cfg.FindHost("unlisted")
	if err != nil || host.Name != "a" {
		t.Fatalf("FindHost(unlisted) should fall back to first host, got %+v, %v", host, err)
	}
	if _, err := (Config{}).FindHost("m1"); err == nil {
		t.Fatal("FindHost with no hosts should fail")
	}
}

func TestHostByName(t *testing.T) {
	cfg := Config{Hosts: []Host{
		{Name: "a", URL: "http://a"},
		{Name: "b", URL: "http://b"},
	}}

	if host, err := cfg.HostByName("b"); err != nil || host.URL != "http://b" {
		t.Fatalf("HostByName(b) = %+v, %v", host, err)
	}
	if host, err := cfg.HostByName("http://a"); err != nil || host.Name != "a" {
		t.Fatalf("HostByName by url = %+v, %v", host, err)
	}
	if _, err := cfg.HostByName("c"); err == nil {
		t.Fatal("expected error for unknown host")
	}
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Debug: true, Hosts: []Host{{Name: "scorer", Type: "llama.cpp", URL: "http://localhost:8080"}}}
	ShowConfig(&buf, "config/config.json", &cfg, Config{})

	out := buf.String()
	for _, want := range []string{"Config file: config/config.json", "Debug:           true", "scorer (llama.cpp)", "Jobs Dir:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}

	buf.Reset()
	ShowConfig(&buf, "", nil, Config{})
	if !strings.Contains(buf.String(), "No config file loaded") {
		t.Fatalf("expected defaults notice, got:\n%s", buf.String())
	}
}
