package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration. Values resolve as process env, then
// .env, then the YAML file named by SUPPORTCHAT_CONFIG, then defaults.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Speech   SpeechConfig   `yaml:"speech"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
	Audio    AudioConfig    `yaml:"audio"`
	Rules    RulesConfig    `yaml:"rules"`
	Session  SessionConfig  `yaml:"session"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Debug    bool           `yaml:"debug"`

	// Source is the YAML file that was read, if any.
	Source string `yaml:"-"`
}

type BackendConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	TopK        int           `yaml:"top_k"`
	KnowledgeID *int          `yaml:"knowledge_id"`
}

type SpeechConfig struct {
	Language           string        `yaml:"language"`
	SilenceThresholdDB float64       `yaml:"silence_threshold_db"`
	SilenceWindow      time.Duration `yaml:"silence_window"`
}

type DeepgramConfig struct {
	APIKey       string        `yaml:"api_key"`
	APIBaseURL   string        `yaml:"api_base"`
	Model        string        `yaml:"model"`
	Language     string        `yaml:"language"`
	SmartFormat  bool          `yaml:"smart_format"`
	Endpointing  time.Duration `yaml:"endpointing"`
	UtteranceEnd time.Duration `yaml:"utterance_end"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type RulesConfig struct {
	Path           string   `yaml:"path"`
	Lines          []string `yaml:"lines"`
	IterationLimit int      `yaml:"iteration_limit"`
}

type SessionConfig struct {
	ChunkSize      int           `yaml:"chunk_size"`
	StreamingGrace time.Duration `yaml:"streaming_grace"`
}

type FeedbackConfig struct {
	IdleDelay time.Duration `yaml:"idle_delay"`
}

// Options locates the optional files Load reads.
type Options struct {
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// ConfigPath overrides SUPPORTCHAT_CONFIG.
	ConfigPath string
}

// Load resolves configuration from ./.env, the YAML file and the environment.
func Load() (Config, error) {
	return LoadWithOptions(Options{EnvFile: ".env"})
}

func LoadWithOptions(opts Options) (Config, error) {
	env, err := newEnvironment(opts.EnvFile)
	if err != nil {
		return Config{}, err
	}

	cfg, err := defaults()
	if err != nil {
		return Config{}, err
	}

	path := firstNonEmpty(opts.ConfigPath, env.get("SUPPORTCHAT_CONFIG"))
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Source = path
	}

	env.apply(&cfg)
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
			TopK:    3,
		},
		Speech: SpeechConfig{
			Language:           "ko-KR",
			SilenceThresholdDB: -45,
			SilenceWindow:      2 * time.Second,
		},
		Deepgram: DeepgramConfig{
			APIBaseURL:   "https://api.deepgram.com/v1",
			Model:        "nova-2",
			SmartFormat:  true,
			Endpointing:  300 * time.Millisecond,
			UtteranceEnd: time.Second,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			SampleRate:      16000,
			Channels:        1,
		},
		Rules: RulesConfig{
			Path:           filepath.Join(home, ".config", "supportchat", "speech.rules"),
			IterationLimit: 30,
		},
		Session: SessionConfig{
			ChunkSize:      4096,
			StreamingGrace: time.Second,
		},
		Feedback: FeedbackConfig{
			IdleDelay: 3 * time.Minute,
		},
	}, nil
}

// normalize replaces out of range values with defaults.
func (c *Config) normalize() {
	c.Backend.BaseURL = strings.TrimSpace(c.Backend.BaseURL)
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.TopK <= 0 {
		c.Backend.TopK = 3
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "ko-KR"
	}
	if c.Speech.SilenceThresholdDB >= 0 {
		c.Speech.SilenceThresholdDB = -45
	}
	if c.Speech.SilenceWindow <= 0 {
		c.Speech.SilenceWindow = 2 * time.Second
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = 30
	}
	if c.Session.ChunkSize < 256 {
		c.Session.ChunkSize = 4096
	}
	if c.Session.StreamingGrace < 0 {
		c.Session.StreamingGrace = time.Second
	}
	if c.Feedback.IdleDelay <= 0 {
		c.Feedback.IdleDelay = 3 * time.Minute
	}
}

func (c *Config) validate() error {
	var errs []string
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	} else if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("backend.base_url %q must be an http(s) URL", c.Backend.BaseURL))
	}
	if c.Backend.KnowledgeID != nil && *c.Backend.KnowledgeID <= 0 {
		errs = append(errs, "backend.knowledge_id must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// environment looks keys up in the process env first, then in the dotenv
// file. Empty values count as unset.
type environment struct {
	dotenv map[string]string
}

func newEnvironment(envFile string) (environment, error) {
	env := environment{dotenv: map[string]string{}}
	if envFile == "" {
		return env, nil
	}
	values, err := godotenv.Read(envFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env, nil
		}
		return environment{}, fmt.Errorf("config: read %s: %w", envFile, err)
	}
	env.dotenv = values
	return env, nil
}

func (e environment) get(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(e.dotenv[key])
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
