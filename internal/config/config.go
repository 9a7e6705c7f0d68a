// Package config loads service settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"agentic-reconciliation-backend/internal/ai"
)

// Config is the top-level service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	AI         ai.Config        `yaml:"ai"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Compliance ComplianceConfig `yaml:"compliance"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// KnowledgeConfig locates the Badger store backing the vector indexes.
// An empty Path keeps everything in memory.
type KnowledgeConfig struct {
	Path      string  `yaml:"path"`
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

type PipelineConfig struct {
	Concurrency   int `yaml:"concurrency"`
	MaxCandidates int `yaml:"max_candidates"`
}

type ComplianceConfig struct {
	WatchDirs    []string `yaml:"watch_dirs"`
	CalendarPath string   `yaml:"calendar_path"`
	DeadlineDays int      `yaml:"deadline_days"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			URL: "host=localhost user=postgres password=postgres dbname=reconciliation port=5432 sslmode=disable",
		},
		AI: *ai.DefaultConfig(),
		Knowledge: KnowledgeConfig{
			Path:      "data/knowledge",
			Threshold: 0.7,
			TopK:      3,
		},
		Pipeline: PipelineConfig{
			Concurrency:   1,
			MaxCandidates: 3,
		},
		Compliance: ComplianceConfig{
			WatchDirs:    []string{"data/regulations"},
			CalendarPath: "data/compliance_calendar.ics",
			DeadlineDays: 7,
		},
	}
}

// Load builds a Config. path may be empty, and a missing file at path is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("DATABASE_URL", &c.Database.URL)
	str("SERVER_ADDR", &c.Server.Addr)
	list("CORS_ORIGINS", &c.Server.CORSOrigins)
	str("LLM_PROVIDER", &c.AI.Provider)
	str("LLM_BASE_URL", &c.AI.BaseURL)
	str("LLM_API_KEY", &c.AI.APIKey)
	str("LLM_MODEL", &c.AI.Model)
	str("EMBEDDING_MODEL", &c.AI.EmbeddingModel)
	str("KNOWLEDGE_PATH", &c.Knowledge.Path)
	list("COMPLIANCE_WATCH_DIRS", &c.Compliance.WatchDirs)
	str("COMPLIANCE_CALENDAR", &c.Compliance.CalendarPath)

	if v, ok := lookup("RAG_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RAG_THRESHOLD: %w", err)
		}
		c.Knowledge.Threshold = f
	}
	if v, ok := lookup("PIPELINE_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PIPELINE_CONCURRENCY: %w", err)
		}
		c.Pipeline.Concurrency = n
	}
	return nil
}

// Validate checks the settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server address is required")
	}
	if c.Knowledge.Threshold < 0 || c.Knowledge.Threshold > 1 {
		return fmt.Errorf("config: knowledge threshold %v must be between 0 and 1", c.Knowledge.Threshold)
	}
	if c.Pipeline.Concurrency < 1 {
		c.Pipeline.Concurrency = 1
	}
	if c.Compliance.DeadlineDays <= 0 {
		c.Compliance.DeadlineDays = 7
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
