package server

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.DBPath != "stagecraft.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.LLMBaseURL != "" {
		t.Fatalf("expected llm disabled by default, got %q", cfg.LLMBaseURL)
	}
}

func TestParseConfigFlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:9001", "-db", "/tmp/test.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9001" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("STAGECRAFT_ADDR", ":7777")
	t.Setenv("STAGECRAFT_LLM_BASE_URL", "http://localhost:11434/v1")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
	if cfg.LLMBaseURL != "http://localhost:11434/v1" {
		t.Fatalf("expected env llm base url, got %q", cfg.LLMBaseURL)
	}
}
