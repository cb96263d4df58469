package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.ChunkLengthSec != 30 || cfg.OverlapFraction != 0.1 {
		t.Fatalf("chunking defaults = %v/%v", cfg.ChunkLengthSec, cfg.OverlapFraction)
	}
	if cfg.MaxSummaryWords != 500 || cfg.MaxRetries != 3 {
		t.Fatalf("summary defaults = %v/%v", cfg.MaxSummaryWords, cfg.MaxRetries)
	}
	if len(cfg.OutputFormats) != 2 || cfg.OutputFormats[0] != "json" || cfg.OutputFormats[1] != "html" {
		t.Fatalf("output formats = %v", cfg.OutputFormats)
	}
	if cfg.Retention != 7*24*time.Hour {
		t.Fatalf("retention = %v", cfg.Retention)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("OVERLAP_FRACTION", "0.25")
	t.Setenv("OUTPUT_FORMATS", "PDF, json")
	t.Setenv("MAX_RETRIES", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "9999" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.OverlapFraction != 0.25 {
		t.Fatalf("overlap = %v", cfg.OverlapFraction)
	}
	if len(cfg.OutputFormats) != 2 || cfg.OutputFormats[0] != "pdf" {
		t.Fatalf("output formats = %v", cfg.OutputFormats)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("max retries = %v", cfg.MaxRetries)
	}
}

func TestLoadConfigRejectsBadOverlap(t *testing.T) {
	t.Setenv("OVERLAP_FRACTION", "1.0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for overlap fraction 1.0")
	}
}

func TestLoadConfigRejectsUnparsableInt(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for a non-numeric MAX_RETRIES")
	}
}

func TestResolveModel(t *testing.T) {
	cases := map[string]string{
		"qwen":         "Qwen/Qwen2.5-7B-Instruct",
		"Qwen":         "Qwen/Qwen2.5-7B-Instruct",
		"llama":        "meta-llama/Llama-3.1-8B-Instruct",
		" LLAMA ":      "meta-llama/Llama-3.1-8B-Instruct",
		"gpt-4o-mini":  "gpt-4o-mini",
		"custom/model": "custom/model",
	}
	for in, want := range cases {
		if got := ResolveModel(in); got != want {
			t.Fatalf("ResolveModel(%q) = %q, want %q", in, got, want)
		}
	}
}
