package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	BaseURL        string
	DataDir        string
	MaxUploadBytes int64

	LLMBaseURL string
	LLMAPIKey  string
	ASRModel   string
	EmbedModel string

	Model           string
	ChunkLengthSec  float64
	OverlapFraction float64
	MaxSummaryWords int
	OutputFormats   []string
	MaxRetries      int

	ASRConcurrency int
	LLMConcurrency int
	CallTimeout    time.Duration
	RetryBaseDelay time.Duration

	ShareSecret string
	ShareTTL    time.Duration
	Retention   time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))
	cfg.DataDir = envOrDefault("DATA_DIR", "data")

	cfg.LLMBaseURL = envOrDefault("LLM_BASE_URL", "http://localhost:8000/v1")
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.ASRModel = envOrDefault("ASR_MODEL", "whisper-1")
	cfg.EmbedModel = envOrDefault("EMBED_MODEL", "text-embedding-3-small")

	cfg.Model = envOrDefault("MODEL", "qwen")
	cfg.OutputFormats = splitList(envOrDefault("OUTPUT_FORMATS", "json,html"))

	chunkLength, err := parseFloatEnv("CHUNK_LENGTH_SECONDS", 30)
	if err != nil {
		return Config{}, fmt.Errorf("parse CHUNK_LENGTH_SECONDS: %w", err)
	}
	cfg.ChunkLengthSec = chunkLength

	overlap, err := parseFloatEnv("OVERLAP_FRACTION", 0.1)
	if err != nil {
		return Config{}, fmt.Errorf("parse OVERLAP_FRACTION: %w", err)
	}
	if overlap < 0 || overlap >= 1 {
		return Config{}, fmt.Errorf("OVERLAP_FRACTION must be in [0,1), got %v", overlap)
	}
	cfg.OverlapFraction = overlap

	maxSummaryWords, err := parseIntEnv("MAX_SUMMARY_WORDS", 500)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_SUMMARY_WORDS: %w", err)
	}
	cfg.MaxSummaryWords = int(maxSummaryWords)

	maxRetries, err := parseIntEnv("MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_RETRIES: %w", err)
	}
	cfg.MaxRetries = int(maxRetries)

	asrConcurrency, err := parseIntEnv("ASR_CONCURRENCY", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse ASR_CONCURRENCY: %w", err)
	}
	cfg.ASRConcurrency = int(asrConcurrency)

	llmConcurrency, err := parseIntEnv("LLM_CONCURRENCY", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse LLM_CONCURRENCY: %w", err)
	}
	cfg.LLMConcurrency = int(llmConcurrency)

	callTimeoutSeconds, err := parseIntEnv("CALL_TIMEOUT_SECONDS", 300)
	if err != nil {
		return Config{}, fmt.Errorf("parse CALL_TIMEOUT_SECONDS: %w", err)
	}
	cfg.CallTimeout = time.Duration(callTimeoutSeconds) * time.Second

	retryBaseMs, err := parseIntEnv("RETRY_BASE_DELAY_MS", 500)
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_BASE_DELAY_MS: %w", err)
	}
	cfg.RetryBaseDelay = time.Duration(retryBaseMs) * time.Millisecond

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 500)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	cfg.ShareSecret = envOrDefault("SHARE_SECRET", "change-me")

	shareTTLSeconds, err := parseIntEnv("SHARE_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, fmt.Errorf("parse SHARE_TTL_SECONDS: %w", err)
	}
	cfg.ShareTTL = time.Duration(shareTTLSeconds) * time.Second

	retentionHours, err := parseIntEnv("RETENTION_HOURS", 7*24)
	if err != nil {
		return Config{}, fmt.Errorf("parse RETENTION_HOURS: %w", err)
	}
	cfg.Retention = time.Duration(retentionHours) * time.Hour

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

// ResolveModel maps the configured model family to a served model
// identifier. Unknown names pass through unchanged.
func ResolveModel(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "qwen":
		return "Qwen/Qwen2.5-7B-Instruct"
	case "llama":
		return "meta-llama/Llama-3.1-8B-Instruct"
	default:
		return name
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
