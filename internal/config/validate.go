package config

import (
	"fmt"
	"strings"
	"time"
)

// Review modes.
const (
	ReviewLocal = "local"
	ReviewLLM   = "llm"
	ReviewBoth  = "both"
)

var validProviders = map[string]string{
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
}

// Audiences and teaching styles.
const (
	AudienceBeginner     = "beginner"
	AudienceIntermediate = "intermediate"
	AudienceAdvanced     = "advanced"

	StyleProgressive = "progressive"
	StyleDirect      = "direct"
	StyleReference   = "reference"
)

var validAudiences = map[string]bool{
	AudienceBeginner:     true,
	AudienceIntermediate: true,
	AudienceAdvanced:     true,
}

var validStyles = map[string]bool{
	StyleProgressive: true,
	StyleDirect:      true,
	StyleReference:   true,
}

var validReviewModes = map[string]bool{
	ReviewLocal: true,
	ReviewLLM:   true,
	ReviewBoth:  true,
}

// Validate checks the config for errors and sets defaults.
func Validate(cfg *Config) error {
	l := &cfg.LLM
	if l.Provider == "" {
		l.Provider = "openrouter"
	}
	keyEnv, ok := validProviders[l.Provider]
	if !ok {
		return fmt.Errorf("config: llm: unknown provider %q (must be openrouter or openai)", l.Provider)
	}
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = keyEnv
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("config: llm: 'model' is required")
	}
	if l.Timeout < 0 {
		return fmt.Errorf("config: llm: timeout must be >= 0")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("config: llm: max-retries must be >= 0")
	}

	g := &cfg.Generation
	if g.MaxIterations < 0 {
		return fmt.Errorf("config: generation: max-iterations must be >= 0")
	}
	if g.CheckpointEvery < 0 {
		return fmt.Errorf("config: generation: checkpoint-every must be >= 0")
	}
	if g.CheckpointEvery == 0 {
		g.CheckpointEvery = 5
	}
	if g.MaxTaskAttempts < 0 {
		return fmt.Errorf("config: generation: max-task-attempts must be >= 0")
	}
	if g.MaxTaskAttempts == 0 {
		g.MaxTaskAttempts = 2
	}
	if g.ContextChars < 0 {
		return fmt.Errorf("config: generation: context-chars must be >= 0")
	}
	if err := validatePreferences(&g.Preferences); err != nil {
		return err
	}

	r := &cfg.Review
	if r.Mode == "" {
		r.Mode = ReviewBoth
	}
	if !validReviewModes[r.Mode] {
		return fmt.Errorf("config: review: unknown mode %q (must be local, llm, or both)", r.Mode)
	}
	if r.MinLines < 0 {
		return fmt.Errorf("config: review: min-lines must be >= 0")
	}

	d := &cfg.Diagrams
	if d.ImagesDir == "" {
		d.ImagesDir = "images"
	}
	if d.Renderer == "" {
		d.Renderer = "mmdc"
	}
	if d.Timeout < 0 {
		return fmt.Errorf("config: diagrams: timeout must be >= 0")
	}
	if d.Timeout == 0 {
		d.Timeout = 30 * time.Second
	}
	if d.FixAttempts < 0 {
		return fmt.Errorf("config: diagrams: fix-attempts must be >= 0")
	}
	for _, a := range d.RendererArgs {
		if a == "-i" || a == "-o" {
			return fmt.Errorf("config: diagrams: renderer-args must not set %s (input and output are supplied per diagram)", a)
		}
	}
	for _, kv := range d.RendererEnv {
		if k, _, ok := strings.Cut(kv, "="); !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("config: diagrams: renderer-env entry %q is not KEY=VALUE", kv)
		}
	}
	return nil
}

func validatePreferences(p *Preferences) error {
	if p.Audience == "" {
		p.Audience = AudienceBeginner
	}
	if !validAudiences[p.Audience] {
		return fmt.Errorf("config: generation: preferences: unknown audience %q (must be beginner, intermediate, or advanced)", p.Audience)
	}
	if p.Style == "" {
		p.Style = StyleProgressive
	}
	if !validStyles[p.Style] {
		return fmt.Errorf("config: generation: preferences: unknown style %q (must be progressive, direct, or reference)", p.Style)
	}
	if p.CodeExamples < 0 {
		return fmt.Errorf("config: generation: preferences: code-examples must be >= 0")
	}
	if p.CodeExamples == 0 {
		p.CodeExamples = 3
	}
	p.Language = strings.TrimSpace(p.Language)
	return nil
}
