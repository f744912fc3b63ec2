package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
	"github.com/urfave/cli/v3"
)

// Generation holds CLI flags for the generation policy
type Generation struct {
	configPath string
}

// Flags returns CLI flags for generation policy configuration
func (g *Generation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "generation-config",
			Usage:       "Path to generation policy TOML file",
			Sources:     cli.EnvVars("RIVULET_GENERATION_CONFIG"),
			Destination: &g.configPath,
		},
	}
}

// Configure loads the generation policy, falling back to defaults when no
// file is given
func (g *Generation) Configure() (*GenerationPolicy, error) {
	if g.configPath == "" {
		return DefaultGenerationPolicy(), nil
	}
	return LoadGenerationPolicy(g.configPath)
}

// GenerationPolicy controls how streams are produced and swept
type GenerationPolicy struct {
	Chunking ChunkingPolicy `toml:"chunking"`
	Fallback FallbackPolicy `toml:"fallback"`
	Reaper   ReaperPolicy   `toml:"reaper"`
	Prompt   PromptPolicy   `toml:"prompt"`
	Script   ScriptPolicy   `toml:"script"`
}

// ChunkingPolicy controls how the scripted source splits text
type ChunkingPolicy struct {
	Granularity string `toml:"granularity"`
	Delay       string `toml:"delay"`
}

// FallbackPolicy controls the text written when generation fails without
// output
type FallbackPolicy struct {
	Text string `toml:"text"`
}

// ReaperPolicy controls the stale-stream sweep
type ReaperPolicy struct {
	Interval string `toml:"interval"`
	Ceiling  string `toml:"ceiling"`
}

// PromptPolicy carries the system prompt handed to the LLM source
type PromptPolicy struct {
	System string `toml:"system"`
}

// ScriptPolicy carries the canned reply used when no LLM is configured
type ScriptPolicy struct {
	Text string `toml:"text"`
}

// DefaultGenerationPolicy returns the policy used when no config file is
// given
func DefaultGenerationPolicy() *GenerationPolicy {
	return &GenerationPolicy{
		Chunking: ChunkingPolicy{
			Granularity: "word",
			Delay:       "0s",
		},
		Fallback: FallbackPolicy{
			Text: stream.DefaultFallbackText,
		},
		Reaper: ReaperPolicy{
			Interval: "30s",
			Ceiling:  "2m",
		},
		Script: ScriptPolicy{
			Text: "This is a canned reply. Configure a Gemini project for real generation.",
		},
	}
}

// LoadGenerationPolicy loads and validates a policy from a TOML file
func LoadGenerationPolicy(path string) (*GenerationPolicy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read generation config", goerr.V("path", path))
	}

	policy := DefaultGenerationPolicy()
	if err := toml.Unmarshal(data, policy); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V("path", path))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "generation config validation failed", goerr.V("path", path))
	}

	return policy, nil
}

// Validate checks the policy invariants
func (p *GenerationPolicy) Validate() error {
	if _, err := p.Granularity(); err != nil {
		return err
	}
	if _, err := p.Delay(); err != nil {
		return err
	}
	if _, err := p.ReaperInterval(); err != nil {
		return err
	}
	if _, err := p.ReaperCeiling(); err != nil {
		return err
	}
	if p.Fallback.Text == "" {
		return goerr.New("fallback text must not be empty")
	}
	return nil
}

// LogValue implements slog.LogValuer so the policy shows up in startup logs
func (p *GenerationPolicy) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("granularity", p.Chunking.Granularity),
		slog.String("delay", p.Chunking.Delay),
		slog.String("reaper_interval", p.Reaper.Interval),
		slog.String("reaper_ceiling", p.Reaper.Ceiling),
	)
}

// Granularity returns the chunk granularity for the scripted source
func (p *GenerationPolicy) Granularity() (source.Granularity, error) {
	g, err := source.ParseGranularity(p.Chunking.Granularity)
	if err != nil {
		return "", goerr.Wrap(err, "invalid chunk granularity")
	}
	return g, nil
}

// Delay returns the pacing delay between scripted chunks
func (p *GenerationPolicy) Delay() (time.Duration, error) {
	return parseDuration(p.Chunking.Delay, "chunking.delay")
}

// ReaperInterval returns how often the reaper sweeps
func (p *GenerationPolicy) ReaperInterval() (time.Duration, error) {
	return parseDuration(p.Reaper.Interval, "reaper.interval")
}

// ReaperCeiling returns the no-progress ceiling after which a stream is
// force-finalized
func (p *GenerationPolicy) ReaperCeiling() (time.Duration, error) {
	return parseDuration(p.Reaper.Ceiling, "reaper.ceiling")
}

func parseDuration(s, field string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid duration", goerr.V("field", field), goerr.V("value", s))
	}
	if d < 0 {
		return 0, goerr.New("duration must not be negative", goerr.V("field", field), goerr.V("value", s))
	}
	return d, nil
}
