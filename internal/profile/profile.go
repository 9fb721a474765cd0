// Package profile holds the process-wide platform configuration.
// A Profile is loaded once at startup and is immutable afterwards; every
// component reads from it but none writes back.
package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Grounding method selection. Static per deployment; the validator does not
// switch methods per request.
const (
	GroundingFast     = "fast"
	GroundingThorough = "thorough"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol).
	// All providers (deepseek, openai, siliconflow, ollama) use the same config.
	LLMProvider string // Provider identifier
	LLMAPIKey   string // API key
	LLMBaseURL  string // Base URL (optional, has default per provider)
	LLMModel    string // Model name: deepseek-chat, gpt-4o, etc.
	LLMTimeout  int    // LLM request timeout in seconds (default: 120)

	// Resolution tier thresholds (0-1). Each tier accepts a classification
	// only at or above its floor.
	Tier0Floor float64
	Tier1Floor float64
	Tier2Floor float64
	// Tier3Ceiling caps LLM-resolved confidence: there is no deterministic
	// signal behind it, so it never reports certainty.
	Tier3Ceiling float64

	// Tier latency budgets in milliseconds.
	Tier2TimeoutMs int
	Tier3TimeoutMs int

	// Grounding configuration.
	GroundingMethod    string  // "fast" or "thorough"
	GroundingThreshold float64 // fast-path similarity floor (default: 0.7)

	// Context budget for prompts sent to the LLM.
	MaxContextTokens int

	// First-party session token secret (HS256).
	SessionSecret string

	// Telegram ingress (optional; empty token disables the channel).
	TelegramBotToken string

	// Server / storage.
	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string

	AIEnabled bool
}

// Provider default configurations for the LLM.
// Used when KESTREL_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the LLM API key is configured. Without it the
// chain still resolves tiers 0-2; tier 3 degrades to Unresolved.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("KESTREL_LLM_PROVIDER", "deepseek")
	p.LLMAPIKey = getEnvOrDefault("KESTREL_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("KESTREL_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("KESTREL_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("KESTREL_LLM_TIMEOUT_SECONDS", 120)

	p.AIEnabled = p.LLMAPIKey != ""

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("unknown LLM provider, using default: deepseek", "provider", p.LLMProvider)
		p.LLMProvider = "deepseek"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.Tier0Floor = getEnvOrDefaultFloat("KESTREL_TIER0_FLOOR", 0.9)
	p.Tier1Floor = getEnvOrDefaultFloat("KESTREL_TIER1_FLOOR", 0.6)
	p.Tier2Floor = getEnvOrDefaultFloat("KESTREL_TIER2_FLOOR", 0.5)
	p.Tier3Ceiling = getEnvOrDefaultFloat("KESTREL_TIER3_CEILING", 0.7)
	p.Tier2TimeoutMs = getEnvOrDefaultInt("KESTREL_TIER2_TIMEOUT_MS", 200)
	p.Tier3TimeoutMs = getEnvOrDefaultInt("KESTREL_TIER3_TIMEOUT_MS", 500)

	p.GroundingMethod = getEnvOrDefault("KESTREL_GROUNDING_METHOD", GroundingFast)
	p.GroundingThreshold = getEnvOrDefaultFloat("KESTREL_GROUNDING_THRESHOLD", 0.7)
	p.MaxContextTokens = getEnvOrDefaultInt("KESTREL_MAX_CONTEXT_TOKENS", 4096)

	p.SessionSecret = getEnvOrDefault("KESTREL_SESSION_SECRET", "")
	p.TelegramBotToken = getEnvOrDefault("KESTREL_TELEGRAM_BOT_TOKEN", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes and validates the profile in place.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.GroundingMethod != GroundingFast && p.GroundingMethod != GroundingThorough {
		return errors.Errorf("unknown grounding method %q (want %q or %q)",
			p.GroundingMethod, GroundingFast, GroundingThorough)
	}
	if p.GroundingThreshold < 0 || p.GroundingThreshold > 1 {
		return errors.Errorf("grounding threshold %.2f out of range [0,1]", p.GroundingThreshold)
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"tier0 floor", p.Tier0Floor},
		{"tier1 floor", p.Tier1Floor},
		{"tier2 floor", p.Tier2Floor},
		{"tier3 ceiling", p.Tier3Ceiling},
	} {
		if th.value < 0 || th.value > 1 {
			return errors.Errorf("%s %.2f out of range [0,1]", th.name, th.value)
		}
	}
	if p.MaxContextTokens <= 0 {
		p.MaxContextTokens = 4096
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/kestrel"
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("kestrel_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile) + "?_loc=auto"
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	return nil
}
