package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir and File name the project-local configuration location.
const (
	Dir  = ".tome"
	File = "config.yaml"
)

type LLM struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base-url"`
	APIKeyEnv  string        `yaml:"api-key-env"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max-retries"`
}

type Generation struct {
	MaxIterations   int         `yaml:"max-iterations"`
	CheckpointEvery int         `yaml:"checkpoint-every"`
	MaxTaskAttempts int         `yaml:"max-task-attempts"`
	ContextChars    int         `yaml:"context-chars"`
	Header          bool        `yaml:"header"`
	Preferences     Preferences `yaml:"preferences"`
}

// Preferences shape the content of every block: who it is written for,
// how it teaches, and which kinds of material it may contain.
type Preferences struct {
	Audience     string `yaml:"audience"` // beginner, intermediate, advanced
	Style        string `yaml:"style"`    // progressive, direct, reference
	Analogies    bool   `yaml:"analogies"`
	Code         bool   `yaml:"code"`
	Tables       bool   `yaml:"tables"`
	Language     string `yaml:"language"` // empty lets the writer choose
	CodeExamples int    `yaml:"code-examples"`
}

// DefaultPreferences is a beginner tutorial with analogies, code and tables.
func DefaultPreferences() Preferences {
	return Preferences{
		Audience:     AudienceBeginner,
		Style:        StyleProgressive,
		Analogies:    true,
		Code:         true,
		Tables:       true,
		CodeExamples: 3,
	}
}

type Review struct {
	Mode     string `yaml:"mode"`
	MinLines int    `yaml:"min-lines"`
}

type Diagrams struct {
	Enabled      bool          `yaml:"enabled"`
	ImagesDir    string        `yaml:"images-dir"`
	Renderer     string        `yaml:"renderer"`
	RendererArgs []string      `yaml:"renderer-args"`
	RendererEnv  []string      `yaml:"renderer-env"` // KEY=VALUE, added to the inherited environment
	Timeout      time.Duration `yaml:"timeout"`
	FixAttempts  int           `yaml:"fix-attempts"`
}

type Config struct {
	LLM        LLM        `yaml:"llm"`
	Generation Generation `yaml:"generation"`
	Review     Review     `yaml:"review"`
	Diagrams   Diagrams   `yaml:"diagrams"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider:   "openrouter",
			Model:      "openai/gpt-4o-mini",
			Timeout:    2 * time.Minute,
			MaxRetries: 3,
		},
		Generation: Generation{
			MaxIterations:   2,
			CheckpointEvery: 5,
			MaxTaskAttempts: 2,
			ContextChars:    1500,
			Header:          true,
			Preferences:     DefaultPreferences(),
		},
		Review: Review{
			Mode:     ReviewBoth,
			MinLines: 60,
		},
		Diagrams: Diagrams{
			Enabled:      true,
			ImagesDir:    "images",
			Renderer:     "mmdc",
			RendererArgs: []string{"-b", "transparent"},
			Timeout:      30 * time.Second,
			FixAttempts:  3,
		},
	}
}

// Load reads a YAML config file over the defaults and validates it.
// An empty path or a missing file yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover walks up from start looking for .tome/config.yaml and returns its
// path, or "" when none exists.
func Discover(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, Dir, File)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// APIKey returns the backend key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}
