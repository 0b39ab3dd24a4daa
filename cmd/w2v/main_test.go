package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/truongthanh96/Word2Vec/internal/config"
	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/truongthanh96/Word2Vec/internal/vocab"
	"github.com/truongthanh96/Word2Vec/pkg/types"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestWritePoints(t *testing.T) {
	var buf bytes.Buffer
	points := []types.ProjectionPoint{
		{Word: "UNK", X: 0, Y: 0},
		{Word: "king", X: 1.5, Y: -2},
	}
	if err := writePoints(&buf, points); err != nil {
		t.Fatal(err)
	}
	want := "UNK\t0\t0\nking\t1.5\t-2\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"train", "vocab", "similar", "project", "checkpoints", "serve", "query", "stats", "config"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected %s command to be registered", name)
		}
	}
}

func TestCheckVocabulary(t *testing.T) {
	voc, _ := vocab.Build(strings.Fields("a b c a b a"), 4)
	other, _ := vocab.Build(strings.Fields("c b a c b c"), 4)

	tests := []struct {
		name    string
		cp      types.Checkpoint
		wantErr bool
	}{
		{"matching", types.Checkpoint{VocabSize: 4, VocabFingerprint: voc.Fingerprint()}, false},
		{"no fingerprint", types.Checkpoint{VocabSize: 4}, false},
		{"other vocabulary", types.Checkpoint{VocabSize: 4, VocabFingerprint: other.Fingerprint()}, true},
		{"size mismatch", types.Checkpoint{VocabSize: 3, VocabFingerprint: voc.Fingerprint()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkVocabulary(&tt.cp, voc)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDiscardTrainingState(t *testing.T) {
	e := &env{dir: t.TempDir()}
	for _, name := range []string{vocabFile, corpusFile, progressFile, checkpointFile, checkpointFile + "-wal"} {
		if err := os.WriteFile(e.path(name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := e.discardTrainingState()
	if err != nil || !removed {
		t.Fatalf("expected files removed, got %v %v", removed, err)
	}
	for _, name := range []string{progressFile, checkpointFile, checkpointFile + "-wal"} {
		if _, err := os.Stat(e.path(name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", name)
		}
	}
	for _, name := range []string{vocabFile, corpusFile} {
		if _, err := os.Stat(e.path(name)); err != nil {
			t.Errorf("expected %s to be kept: %v", name, err)
		}
	}

	removed, err = e.discardTrainingState()
	if err != nil || removed {
		t.Errorf("expected nothing left to remove, got %v %v", removed, err)
	}
}

func TestResumeIterations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, progressFile)

	pinned, err := resumeIterations(path)
	if err != nil || len(pinned) != 0 {
		t.Errorf("expected nothing pinned without a progress file, got %v %v", pinned, err)
	}

	err = training.SaveProgress(path, &training.ProgressFile{
		TrainDataProgress: &types.Cursor{},
		TensorProgress:    &types.Progress{Iteration: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	pinned, err = resumeIterations(path)
	if err != nil || len(pinned) != 1 || pinned[0] != 20 {
		t.Errorf("expected iteration 20 pinned, got %v %v", pinned, err)
	}

	os.WriteFile(path, []byte("{not json"), 0644)
	if _, err := resumeIterations(path); err == nil {
		t.Error("expected error for an unreadable progress file")
	}
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "w2v.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Vocab.Capacity = 1234

	if err := writeConfig(path, cfg, false); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Vocab.Capacity != 1234 {
		t.Errorf("expected capacity 1234, got %d", loaded.Vocab.Capacity)
	}

	if err := writeConfig(path, cfg, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := writeConfig(path, cfg, true); err != nil {
		t.Errorf("expected --force to overwrite, got %v", err)
	}
}
