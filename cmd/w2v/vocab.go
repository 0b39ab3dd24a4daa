package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Build or inspect the vocabulary",
}

var (
	vocabIsDir     bool
	vocabPreload   bool
	vocabLowercase bool
	vocabCapacity  int
	vocabLimit     int
)

var vocabBuildCmd = &cobra.Command{
	Use:   "build <corpus>",
	Short: "Build the vocabulary and encoded corpus",
	Long: `Count the corpus, keep the most frequent words and save the vocabulary and
the encoded corpus in the data directory. Training reuses them.

Saved training progress and checkpoints belong to the previous vocabulary
and are removed. Use 'w2v train --rebuild' to rebuild and start training
over in one step.

Examples:
  w2v vocab build ./text8
  w2v vocab build ./books --dir --capacity 20000`,
	Args: cobra.ExactArgs(1),
	RunE: runVocabBuild,
}

var vocabShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the most frequent words",
	Long: `Print the saved vocabulary in id order with frequencies.

Examples:
  w2v vocab show
  w2v vocab show --limit 50`,
	RunE: runVocabShow,
}

func init() {
	vocabBuildCmd.Flags().BoolVar(&vocabIsDir, "dir", false, "Corpus is a directory")
	vocabBuildCmd.Flags().BoolVar(&vocabPreload, "preload", false, "Read whole files into memory")
	vocabBuildCmd.Flags().BoolVar(&vocabLowercase, "lowercase", false, "Fold tokens to lower case")
	vocabBuildCmd.Flags().IntVar(&vocabCapacity, "capacity", 0, "Vocabulary size including UNK (default from config)")

	vocabShowCmd.Flags().IntVarP(&vocabLimit, "limit", "n", 20, "Words to show")

	vocabCmd.AddCommand(vocabBuildCmd)
	vocabCmd.AddCommand(vocabShowCmd)
}

func runVocabBuild(cmd *cobra.Command, args []string) error {
	e, err := initEnv()
	if err != nil {
		return err
	}

	e.cfg.Corpus.Path = args[0]
	e.cfg.Corpus.IsDir = vocabIsDir
	e.cfg.Corpus.Preload = vocabPreload
	e.cfg.Corpus.Lowercase = vocabLowercase
	if vocabCapacity > 0 {
		e.cfg.Vocab.Capacity = vocabCapacity
	}

	voc, data, err := e.dataset(context.Background(), e.cfg.CorpusOptions(), true)
	if err != nil {
		return err
	}
	discarded, err := e.discardTrainingState()
	if err != nil {
		return err
	}

	fmt.Printf("Vocabulary: %d words\n", voc.Size())
	fmt.Printf("Tokens:     %d (%d unknown)\n", len(data), voc.UnknownCount())
	fmt.Printf("Saved to:   %s\n", e.dir)
	if discarded {
		fmt.Println("Removed training progress and checkpoints of the previous vocabulary")
	}
	return nil
}

func runVocabShow(cmd *cobra.Command, args []string) error {
	e, err := initEnv()
	if err != nil {
		return err
	}

	voc, err := e.loadVocabulary()
	if err != nil {
		return err
	}

	n := voc.Size()
	if vocabLimit > 0 && vocabLimit < n {
		n = vocabLimit
	}

	fmt.Printf("%d of %d words:\n\n", n, voc.Size())
	fmt.Printf("  %6s  %-24s %s\n", "ID", "WORD", "COUNT")
	for id := 0; id < n; id++ {
		fmt.Printf("  %6d  %-24s %d\n", id, voc.Word(id), voc.Count(id))
	}
	return nil
}
