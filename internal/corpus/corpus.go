// Package corpus reads raw text into tokens and encoded datasets
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/truongthanh96/Word2Vec/internal/vocab"
)

// Options configures how the corpus is read
type Options struct {
	Path      string   // File, or directory when IsDir is set
	IsDir     bool     // Read every regular file under Path
	Preload   bool     // Read whole files into memory instead of streaming words
	Lowercase bool     // Fold tokens to lower case
	Ignore    []string // Base-name glob patterns skipped while walking a directory
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Preload: false,
		Ignore:  []string{".git", ".*"},
	}
}

// Files lists the files making up the corpus in lexical order
func Files(opts Options) ([]string, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("corpus path is required")
	}

	info, err := os.Stat(opts.Path)
	if err != nil {
		return nil, err
	}

	if !opts.IsDir {
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory (set the directory flag)", opts.Path)
		}
		return []string{opts.Path}, nil
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", opts.Path)
	}

	var files []string
	err = filepath.WalkDir(opts.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != opts.Path && ignored(d.Name(), opts.Ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func ignored(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Stream calls fn for every token of the corpus in order
func Stream(ctx context.Context, opts Options, fn func(token string) error) error {
	files, err := Files(opts)
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.Preload {
			err = preloadFile(path, opts.Lowercase, fn)
		} else {
			err = streamFile(ctx, path, opts.Lowercase, fn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadTokens returns every token of the corpus
func ReadTokens(ctx context.Context, opts Options) ([]string, error) {
	var tokens []string
	err := Stream(ctx, opts, func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func preloadFile(path string, lower bool, fn func(string) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, tok := range strings.Fields(string(data)) {
		if lower {
			tok = strings.ToLower(tok)
		}
		if err := fn(tok); err != nil {
			return err
		}
	}
	return nil
}

func streamFile(ctx context.Context, path string, lower bool, fn func(string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)

	n := 0
	for scanner.Scan() {
		n++
		if n%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tok := scanner.Text()
		if lower {
			tok = strings.ToLower(tok)
		}
		if err := fn(tok); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// BuildDataset builds the vocabulary and the encoded corpus. With Preload the
// tokens are held in memory once; otherwise the corpus is streamed twice, first
// to count frequencies and then to encode.
func BuildDataset(ctx context.Context, opts Options, capacity int) (*vocab.Vocabulary, []int, error) {
	if capacity < 1 {
		return nil, nil, fmt.Errorf("%w: got %d", vocab.ErrCapacity, capacity)
	}

	if opts.Preload {
		tokens, err := ReadTokens(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return vocab.BuildDataset(tokens, capacity)
	}

	counter := vocab.NewCounter()
	if err := Stream(ctx, opts, func(tok string) error {
		counter.Add(tok)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	v, err := counter.Build(capacity)
	if err != nil {
		return nil, nil, err
	}

	data := make([]int, 0, counter.Total())
	if err := Stream(ctx, opts, func(tok string) error {
		data = append(data, v.Lookup(tok))
		return nil
	}); err != nil {
		return nil, nil, err
	}
	if int64(len(data)) != counter.Total() {
		return nil, nil, fmt.Errorf("corpus changed while reading: %d tokens counted, %d encoded", counter.Total(), len(data))
	}

	return v, data, nil
}
