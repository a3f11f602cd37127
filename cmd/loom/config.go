package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the loom configuration file (~/.config/loom/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	// Sampling defaults
	Temperature   *float64 `yaml:"temperature"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	MaxTokens     *int64   `yaml:"max_tokens"`
	Seed          *int64   `yaml:"seed"`

	// Engine
	MaxContext *int64 `yaml:"max_context"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	LogLevel   string `yaml:"log_level"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "loom", "config.yaml")
}

// applyRunConfig applies config file defaults to run command variables
// when the corresponding CLI flag was not explicitly set.
func applyRunConfig(c *cli.Command, cfg Config,
	temp *float64, topK *int64, topP *float64, repeatPenalty *float64,
	maxTokens *int64, seed *int64, maxContext *int64, streamMode, logLevel *string,
) {
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") {
		*temp = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") && !c.IsSet("top_k") {
		*topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") {
		*topP = *cfg.TopP
	}
	if cfg.RepeatPenalty != nil && !c.IsSet("repeat-penalty") && !c.IsSet("repeat_penalty") {
		*repeatPenalty = *cfg.RepeatPenalty
	}
	if cfg.MaxTokens != nil && !c.IsSet("max-tokens") {
		*maxTokens = *cfg.MaxTokens
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		*maxContext = *cfg.MaxContext
	}
	if cfg.StreamMode != "" && !c.IsSet("stream-mode") {
		*streamMode = cfg.StreamMode
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*logLevel = cfg.LogLevel
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxContext *int64, logLevel *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		*maxContext = *cfg.MaxContext
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*logLevel = cfg.LogLevel
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// does not exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
