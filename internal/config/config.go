// Package config loads the YAML application configuration and its environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/truongthanh96/Word2Vec/internal/corpus"
	"github.com/truongthanh96/Word2Vec/internal/embedding/nce"
	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/truongthanh96/Word2Vec/internal/window"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "W2V_"

// CorpusConfig describes the training text
type CorpusConfig struct {
	Path      string   `yaml:"path"`
	IsDir     bool     `yaml:"is_dir"`
	Preload   bool     `yaml:"preload"`
	Lowercase bool     `yaml:"lowercase"`
	Ignore    []string `yaml:"ignore"`
}

// VocabConfig bounds the dictionary
type VocabConfig struct {
	Capacity int `yaml:"capacity"`
}

// ModelConfig holds the windowing and trainer hyperparameters
type ModelConfig struct {
	BatchSize    int     `yaml:"batch_size"`
	NumSkips     int     `yaml:"num_skips"`
	SkipWindow   int     `yaml:"skip_window"`
	Dimensions   int     `yaml:"dimensions"`
	NumSampled   int     `yaml:"num_sampled"`
	LearningRate float64 `yaml:"learning_rate"`
	ValidSize    int     `yaml:"valid_size"`
	ValidWindow  int     `yaml:"valid_window"`
	Seed         uint64  `yaml:"seed"`
}

// TrainingConfig controls the outer loop and checkpointing
type TrainingConfig struct {
	NumSteps              int   `yaml:"num_steps"`
	SaveEveryIteration    int64 `yaml:"save_every_iteration"`
	TopK                  int   `yaml:"top_k"`
	MaxCheckpointFailures int   `yaml:"max_checkpoint_failures"`
	KeepCheckpoints       int   `yaml:"keep_checkpoints"`
	LogEvery              int64 `yaml:"log_every"`
}

// StorageConfig places the files written by training
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ServerConfig configures the HTTP query API
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	CacheSize int    `yaml:"cache_size"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure
type AppConfig struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Vocab    VocabConfig    `yaml:"vocab"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads a config from path and applies environment overrides. If the
// file does not exist, defaults are used.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		applyConfigDefaults(cfg)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./w2v.yaml first, then ~/.config/w2v/config.yaml.
// If neither exists, defaults are returned along with the user config path.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "w2v.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the settings that cannot be defaulted
func (c *AppConfig) Validate() error {
	if c.Vocab.Capacity < 1 {
		return fmt.Errorf("vocab.capacity must be at least 1, got %d", c.Vocab.Capacity)
	}
	if c.Training.NumSteps < 0 {
		return fmt.Errorf("training.num_steps must not be negative, got %d", c.Training.NumSteps)
	}
	if c.Training.SaveEveryIteration < 0 {
		return fmt.Errorf("training.save_every_iteration must not be negative, got %d", c.Training.SaveEveryIteration)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// CorpusOptions returns the corpus reader options
func (c *AppConfig) CorpusOptions() corpus.Options {
	return corpus.Options{
		Path:      c.Corpus.Path,
		IsDir:     c.Corpus.IsDir,
		Preload:   c.Corpus.Preload,
		Lowercase: c.Corpus.Lowercase,
		Ignore:    c.Corpus.Ignore,
	}
}

// WindowConfig returns the batch generator settings
func (c *AppConfig) WindowConfig() window.Config {
	return window.Config{
		BatchSize:  c.Model.BatchSize,
		NumSkips:   c.Model.NumSkips,
		SkipWindow: c.Model.SkipWindow,
		Seed:       c.Model.Seed,
	}
}

// TrainerConfig returns the trainer hyperparameters for a vocabulary of vocabSize
func (c *AppConfig) TrainerConfig(vocabSize int) nce.Config {
	return nce.Config{
		VocabSize:    vocabSize,
		Dimensions:   c.Model.Dimensions,
		NumSampled:   c.Model.NumSampled,
		LearningRate: c.Model.LearningRate,
		ValidSize:    c.Model.ValidSize,
		ValidWindow:  c.Model.ValidWindow,
		Seed:         c.Model.Seed,
	}
}

// TrainingConfig returns the orchestrator settings. Logger, metrics and
// progress path are left for the caller.
func (c *AppConfig) TrainingConfig() training.Config {
	return training.Config{
		NumSteps:              c.Training.NumSteps,
		SaveEveryIteration:    c.Training.SaveEveryIteration,
		TopK:                  c.Training.TopK,
		MaxCheckpointFailures: c.Training.MaxCheckpointFailures,
		KeepCheckpoints:       c.Training.KeepCheckpoints,
		LogEvery:              c.Training.LogEvery,
	}
}

// Addr returns the listen address of the HTTP server
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "w2v", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	opts := corpus.DefaultOptions()
	win := window.DefaultConfig()
	model := nce.DefaultConfig(0)
	train := training.DefaultConfig()

	return &AppConfig{
		Corpus: CorpusConfig{
			Preload: opts.Preload,
			Ignore:  opts.Ignore,
		},
		Vocab: VocabConfig{Capacity: 50000},
		Model: ModelConfig{
			BatchSize:    win.BatchSize,
			NumSkips:     win.NumSkips,
			SkipWindow:   win.SkipWindow,
			Dimensions:   model.Dimensions,
			NumSampled:   model.NumSampled,
			LearningRate: model.LearningRate,
			ValidSize:    model.ValidSize,
			ValidWindow:  model.ValidWindow,
			Seed:         model.Seed,
		},
		Training: TrainingConfig{
			NumSteps:              train.NumSteps,
			SaveEveryIteration:    train.SaveEveryIteration,
			TopK:                  train.TopK,
			MaxCheckpointFailures: train.MaxCheckpointFailures,
			LogEvery:              train.LogEvery,
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: 3141, CacheSize: 1024},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// applyConfigDefaults replaces zero values that are never valid.
// Fields where zero is meaningful (save interval, keep, seed) are left alone.
func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()

	if cfg.Vocab.Capacity == 0 {
		cfg.Vocab.Capacity = def.Vocab.Capacity
	}
	if cfg.Model.BatchSize == 0 {
		cfg.Model.BatchSize = def.Model.BatchSize
	}
	if cfg.Model.NumSkips == 0 {
		cfg.Model.NumSkips = def.Model.NumSkips
	}
	if cfg.Model.SkipWindow == 0 {
		cfg.Model.SkipWindow = def.Model.SkipWindow
	}
	if cfg.Model.Dimensions == 0 {
		cfg.Model.Dimensions = def.Model.Dimensions
	}
	if cfg.Model.NumSampled == 0 {
		cfg.Model.NumSampled = def.Model.NumSampled
	}
	if cfg.Model.LearningRate == 0 {
		cfg.Model.LearningRate = def.Model.LearningRate
	}
	if cfg.Model.ValidSize == 0 {
		cfg.Model.ValidSize = def.Model.ValidSize
	}
	if cfg.Model.ValidWindow == 0 {
		cfg.Model.ValidWindow = def.Model.ValidWindow
	}
	if cfg.Training.TopK == 0 {
		cfg.Training.TopK = def.Training.TopK
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.CacheSize == 0 {
		cfg.Server.CacheSize = def.Server.CacheSize
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// applyEnv overrides settings from W2V_* variables
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("CORPUS", &cfg.Corpus.Path)
	str("DATA_DIR", &cfg.Storage.DataDir)
	str("HOST", &cfg.Server.Host)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	for name, dst := range map[string]*int{
		"VOCAB_SIZE": &cfg.Vocab.Capacity,
		"NUM_STEPS":  &cfg.Training.NumSteps,
		"DIMENSIONS": &cfg.Model.Dimensions,
		"BATCH_SIZE": &cfg.Model.BatchSize,
		"PORT":       &cfg.Server.Port,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "SAVE_EVERY"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSAVE_EVERY: %w", EnvPrefix, err)
		}
		cfg.Training.SaveEveryIteration = n
	}
	return nil
}
