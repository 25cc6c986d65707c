package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds everything the process needs at startup. It is built once in
// main and passed by value into constructors; nothing mutates it afterwards.
// Per-run model selection overrides travel in RunOptions, never here.
type Config struct {
	OpenRouterAPIKey string `yaml:"-"`
	OpenRouterAPIURL string `yaml:"openrouter_api_url"`

	CouncilModels []string `yaml:"council_models"`
	ChairmanModel string   `yaml:"chairman_model"`
	TitleModel    string   `yaml:"title_model"`

	DataDir string `yaml:"data_dir"`

	// Durations are env/program-level knobs; the YAML file covers model
	// selection and serving options only.
	ModelQueryTimeout    time.Duration `yaml:"-"`
	TitleGenTimeout      time.Duration `yaml:"-"`
	MaxConcurrentQueries int           `yaml:"max_concurrent_queries"`

	ListenAddr         string        `yaml:"listen_addr"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	ListingCacheTTL    time.Duration `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		OpenRouterAPIURL: "https://openrouter.ai/api/v1/chat/completions",
		CouncilModels: []string{
			"openai/gpt-5.1",
			"google/gemini-3-pro-preview",
			"anthropic/claude-sonnet-4.5",
			"x-ai/grok-4",
		},
		ChairmanModel:        "google/gemini-3-pro-preview",
		TitleModel:           "google/gemini-2.5-flash",
		DataDir:              "data/conversations",
		ModelQueryTimeout:    120 * time.Second,
		TitleGenTimeout:      30 * time.Second,
		MaxConcurrentQueries: 8,
		ListenAddr:           ":8001",
		MaxRequestBodySize:   1 << 20,
		ListingCacheTTL:      5 * time.Minute,
	}
}

// LoadConfig builds the process configuration: built-in defaults, then an
// optional council.yaml, then environment variables. The .env file is probed
// in the current and parent directory like the rest of the project expects.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	envLoaded := false
	for _, envPath := range []string{".env", "../.env"} {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			if err := godotenv.Load(absPath); err == nil {
				log.Printf("Loaded .env from: %s", absPath)
				envLoaded = true
				break
			}
		}
	}
	if !envLoaded {
		log.Printf("Warning: .env file not found in any expected location")
	}

	if err := loadYAML(&cfg); err != nil {
		return Config{}, err
	}

	cfg.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	if cfg.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		cfg.CORSAllowedOrigins = nil
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	log.Println("Configuration loaded successfully")
	return cfg, nil
}

// loadYAML overlays council.yaml onto cfg if the file exists. The path can
// be overridden with COUNCIL_CONFIG.
func loadYAML(cfg *Config) error {
	path := os.Getenv("COUNCIL_CONFIG")
	if path == "" {
		path = "council.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.Printf("Loaded config overrides from: %s", path)
	return nil
}
