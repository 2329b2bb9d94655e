package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"valuation/internal/dataset"
)

// Shortlisted targets live next to the cache so they survive across runs.
var shortlistFile = filepath.Join(".valuation", "shortlist.txt")

// loadShortlist returns the stored target identifiers. A missing file is an
// empty shortlist.
func loadShortlist() ([]string, error) {
	f, err := os.Open(shortlistFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, scanner.Err()
}

// saveToShortlist appends id unless an identifier with the same normalised
// form is already stored.
func saveToShortlist(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("target has no identifier")
	}
	existing, err := loadShortlist()
	if err != nil {
		return err
	}
	norm := dataset.Normalize(id)
	for _, e := range existing {
		if dataset.Normalize(e) == norm {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(shortlistFile), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(shortlistFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, id)
	return err
}

var shortlistOpts evalFlags

var shortlistCmd = &cobra.Command{
	Use:   "shortlist [data-file]",
	Short: "Browse saved targets and evaluate them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := loadShortlist()
		if err != nil {
			return fmt.Errorf("failed to load shortlist: %w", err)
		}
		if len(ids) == 0 {
			cmd.Println("No targets saved yet. Use evaluate --save to add one.")
			return nil
		}

		evaluator, closeCache, err := openEvaluator(shortlistOpts.noCache)
		if err != nil {
			return err
		}
		defer closeCache()

		out := cmd.OutOrStdout()
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		interactiveSelect(ids, func(i int) {
			shortlistOpts.target = ids[i]
			target, candidates, err := shortlistOpts.load(cmd.Context(), cmd, args)
			if err != nil {
				fmt.Fprintf(out, "failed to load %s: %v\n", ids[i], err)
				return
			}
			run, err := evaluator.Evaluate(cmd.Context(), target, candidates, shortlistOpts.params(cmd, target))
			if err != nil {
				fmt.Fprintf(out, "failed to evaluate %s: %v\n", ids[i], err)
				return
			}
			renderEvaluation(out, run.Evaluation)
		})
		return nil
	},
}

func init() {
	shortlistOpts.bind(shortlistCmd, false)
	shortlistCmd.Flags().BoolVar(&shortlistOpts.noCache, "no-cache", false, "do not read or write the evaluation cache")
	rootCmd.AddCommand(shortlistCmd)
}
