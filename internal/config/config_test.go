package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Vocab.Capacity != 50000 {
		t.Errorf("expected capacity 50000, got %d", cfg.Vocab.Capacity)
	}
	if cfg.Model.BatchSize != 128 || cfg.Model.NumSkips != 2 || cfg.Model.SkipWindow != 2 {
		t.Errorf("unexpected window defaults: %+v", cfg.Model)
	}
	if cfg.Model.Dimensions != 300 || cfg.Model.NumSampled != 64 || cfg.Model.LearningRate != 1.0 {
		t.Errorf("unexpected trainer defaults: %+v", cfg.Model)
	}
	if cfg.Training.NumSteps != 2 || cfg.Training.SaveEveryIteration != 1000 || cfg.Training.TopK != 8 {
		t.Errorf("unexpected training defaults: %+v", cfg.Training)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w2v.yaml")
	content := `
corpus:
  path: /data/text8
vocab:
  capacity: 100
model:
  dimensions: 16
training:
  save_every_iteration: 0
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Corpus.Path != "/data/text8" {
		t.Errorf("expected corpus path /data/text8, got %q", cfg.Corpus.Path)
	}
	if cfg.Vocab.Capacity != 100 {
		t.Errorf("expected capacity 100, got %d", cfg.Vocab.Capacity)
	}
	if cfg.Model.Dimensions != 16 {
		t.Errorf("expected 16 dimensions, got %d", cfg.Model.Dimensions)
	}
	if cfg.Model.BatchSize != 128 {
		t.Errorf("expected default batch size, got %d", cfg.Model.BatchSize)
	}
	if cfg.Training.SaveEveryIteration != 0 {
		t.Errorf("expected checkpoints disabled, got %d", cfg.Training.SaveEveryIteration)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("vocab: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultConfig()
	cfg.Corpus.Path = "corpus.txt"
	cfg.Model.Seed = 42
	cfg.Training.KeepCheckpoints = 5

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Corpus.Path != "corpus.txt" || loaded.Model.Seed != 42 || loaded.Training.KeepCheckpoints != 5 {
		t.Errorf("config not preserved: %+v", loaded)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"W2V_CORPUS":     "/tmp/corpus",
		"W2V_DATA_DIR":   "/tmp/w2v",
		"W2V_VOCAB_SIZE": "500",
		"W2V_NUM_STEPS":  "3",
		"W2V_SAVE_EVERY": "250",
		"W2V_PORT":       "9000",
		"W2V_LOG_LEVEL":  "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := defaultConfig()
	if err := applyEnv(cfg, lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Corpus.Path != "/tmp/corpus" || cfg.Storage.DataDir != "/tmp/w2v" {
		t.Errorf("paths not overridden: %+v %+v", cfg.Corpus, cfg.Storage)
	}
	if cfg.Vocab.Capacity != 500 {
		t.Errorf("expected capacity 500, got %d", cfg.Vocab.Capacity)
	}
	if cfg.Training.NumSteps != 3 || cfg.Training.SaveEveryIteration != 250 {
		t.Errorf("training not overridden: %+v", cfg.Training)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestApplyEnvInvalidNumber(t *testing.T) {
	tests := []string{"W2V_VOCAB_SIZE", "W2V_PORT", "W2V_SAVE_EVERY"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == name {
					return "many", true
				}
				return "", false
			}
			if err := applyEnv(defaultConfig(), lookup); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"zero capacity", func(c *AppConfig) { c.Vocab.Capacity = 0 }},
		{"negative steps", func(c *AppConfig) { c.Training.NumSteps = -1 }},
		{"negative save interval", func(c *AppConfig) { c.Training.SaveEveryIteration = -5 }},
		{"port out of range", func(c *AppConfig) { c.Server.Port = 70000 }},
		{"unknown log format", func(c *AppConfig) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := defaultConfig()
	cfg.Model.Seed = 7

	win := cfg.WindowConfig()
	if win.BatchSize != 128 || win.Seed != 7 {
		t.Errorf("unexpected window config: %+v", win)
	}
	if err := win.Validate(100); err != nil {
		t.Errorf("window config should validate: %v", err)
	}

	tr := cfg.TrainerConfig(1000)
	if tr.VocabSize != 1000 || tr.Dimensions != 300 || tr.Seed != 7 {
		t.Errorf("unexpected trainer config: %+v", tr)
	}
	if err := tr.Validate(); err != nil {
		t.Errorf("trainer config should validate: %v", err)
	}

	if got := cfg.TrainingConfig().SaveEveryIteration; got != 1000 {
		t.Errorf("expected save interval 1000, got %d", got)
	}
	if got := cfg.Addr(); got != "127.0.0.1:3141" {
		t.Errorf("expected 127.0.0.1:3141, got %s", got)
	}
}
