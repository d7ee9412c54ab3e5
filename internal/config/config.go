// Package config loads the daemon configuration: defaults, an
// optional YAML file, then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/holoself/go-ambient/pkg/blink"
	"github.com/holoself/go-ambient/pkg/cadence"
	"github.com/holoself/go-ambient/pkg/health"
	"github.com/holoself/go-ambient/pkg/posture"
	"github.com/holoself/go-ambient/pkg/presence"
	"github.com/holoself/go-ambient/pkg/speech"
	"github.com/holoself/go-ambient/pkg/summary"
	"github.com/holoself/go-ambient/pkg/transcribe"
	"github.com/holoself/go-ambient/pkg/vision"
	"github.com/holoself/go-ambient/pkg/voicecap"
	"github.com/holoself/go-ambient/pkg/web"
)

// TTS holds the speech synthesis settings.
type TTS struct {
	// APIKey authenticates against the hosted synthesis service.
	// Normally comes from CARTESIA_API_KEY.
	APIKey string `yaml:"api_key"`

	// VoiceID selects the synthesis voice.
	VoiceID string `yaml:"voice_id"`

	// ModelID selects the synthesis model. Default: sonic-2.
	ModelID string `yaml:"model_id"`

	// Language is the synthesis language code. Default: en.
	Language string `yaml:"language"`

	// Speed adjusts speaking rate, -1.0..1.0.
	Speed float64 `yaml:"speed"`
}

// Agent holds the reasoning service settings.
type Agent struct {
	// BaseURL of the message service. Empty disables polling.
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer token, if the service requires one.
	APIKey string `yaml:"api_key"`

	// PollInterval between message fetches. Default: 15m.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Config aggregates every component's settings.
type Config struct {
	// LogLevel is debug, info, warn or error. Default: info.
	LogLevel string `yaml:"log_level"`

	// AutoSpeak speaks priority-1 alerts and agent nudges aloud.
	AutoSpeak bool `yaml:"auto_speak"`

	// Hotkey is the voice activation chord. Default: ctrl+shift+space.
	Hotkey string `yaml:"hotkey"`

	Vision     vision.Config     `yaml:"vision"`
	Presence   presence.Config   `yaml:"presence"`
	Posture    posture.Config    `yaml:"posture"`
	Blink      blink.Config      `yaml:"blink"`
	Cadence    cadence.Config    `yaml:"cadence"`
	Voice      voicecap.Config   `yaml:"voice"`
	Speech     speech.Config     `yaml:"speech"`
	Transcribe transcribe.Config `yaml:"transcribe"`
	Health     health.Config     `yaml:"health"`
	Summary    summary.Config    `yaml:"summary"`
	Web        web.Config        `yaml:"web"`
	TTS        TTS               `yaml:"tts"`
	Agent      Agent             `yaml:"agent"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		AutoSpeak: true,
		Hotkey:    "ctrl+shift+space",

		Vision:     vision.DefaultConfig(),
		Presence:   presence.DefaultConfig(),
		Posture:    posture.DefaultConfig(),
		Blink:      blink.DefaultConfig(),
		Cadence:    cadence.DefaultConfig(),
		Voice:      voicecap.DefaultConfig(),
		Speech:     speech.DefaultConfig(),
		Transcribe: transcribe.DefaultConfig(),
		Health:     health.DefaultConfig(),
		Summary:    summary.DefaultConfig(),
		Web:        web.DefaultConfig(),
		TTS: TTS{
			ModelID:  "sonic-2",
			Language: "en",
		},
		Agent: Agent{
			PollInterval: 15 * time.Minute,
		},
	}
}

// Load builds the configuration. A missing file is not an error; the
// defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv layers environment variables over the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("AMBIENT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("AMBIENT_WEB_ADDR"); v != "" {
		c.Web.Addr = v
	}
	if v := os.Getenv("AMBIENT_HOTKEY"); v != "" {
		c.Hotkey = v
	}
	if v := os.Getenv("CARTESIA_API_KEY"); v != "" {
		c.TTS.APIKey = v
	}
	if v := os.Getenv("CARTESIA_VOICE_ID"); v != "" {
		c.TTS.VoiceID = v
	}
	if v := os.Getenv("AMBIENT_AGENT_URL"); v != "" {
		c.Agent.BaseURL = v
	}
	if v := os.Getenv("AMBIENT_AGENT_KEY"); v != "" {
		c.Agent.APIKey = v
	}
}
