package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"valuation/internal/cache"
	"valuation/internal/config"
	"valuation/internal/types"
)

var (
	evalOpts        evalFlags
	evalJSON        bool
	evalInteractive bool
	evalWatch       bool
	evalSave        bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [data-file]",
	Short: "Estimate the target's price per m² from nearby comparables",
	Long: `Loads the transactions, selects the comparables of the target within the
distance limit and area band, and interpolates its price per m² with inverse
distance weighting. The first record is the target unless --target is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evalOpts.bind(evaluateCmd, true)
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "output the evaluation as JSON")
	evaluateCmd.Flags().BoolVarP(&evalInteractive, "interactive", "i", false, "browse the comparables after the report")
	evaluateCmd.Flags().BoolVarP(&evalWatch, "watch", "w", false, "re-evaluate whenever the data file changes")
	evaluateCmd.Flags().BoolVar(&evalSave, "save", false, "add the target to the shortlist")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	evaluator, closeCache, err := openEvaluator(evalOpts.noCache)
	if err != nil {
		return err
	}
	defer closeCache()

	once := func() (cache.Run, error) {
		run, err := evaluateOnce(ctx, cmd, args, evaluator)
		if err != nil {
			return run, err
		}
		return run, outputRun(cmd.OutOrStdout(), run)
	}

	if !evalWatch {
		run, err := once()
		if err != nil {
			return err
		}
		if evalSave {
			if err := saveToShortlist(run.Evaluation.Target.Identifier); err != nil {
				return err
			}
			cmd.Printf("Saved %s to the shortlist.\n", run.Evaluation.Target.Identifier)
		}
		if evalInteractive && !evalJSON {
			browseComparables(cmd.OutOrStdout(), run)
		}
		return nil
	}

	path := evalOpts.dataPath(args)
	if evalOpts.sourceKind(path) == config.SourceOracle {
		return errors.New("--watch needs a file source")
	}
	return watchFile(ctx, path, func() {
		if _, err := once(); err != nil {
			log.Error("evaluation failed", "error", err)
		}
	})
}

func evaluateOnce(ctx context.Context, cmd *cobra.Command, args []string, evaluator *cache.Evaluator) (cache.Run, error) {
	target, candidates, err := evalOpts.load(ctx, cmd, args)
	if err != nil {
		return cache.Run{}, err
	}

	run, err := evaluator.Evaluate(ctx, target, candidates, evalOpts.params(cmd, target))
	if err != nil {
		return cache.Run{}, err
	}
	log.Info("evaluated",
		"run_id", run.ID,
		"cached", run.Cached,
		"target", target.Identifier,
		"comparables", len(run.Evaluation.Comparables),
		"status", run.Evaluation.Result.Status,
	)
	return run, nil
}

func outputRun(w io.Writer, run cache.Run) error {
	if evalJSON {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal evaluation: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	renderEvaluation(w, run.Evaluation)
	return nil
}

func browseComparables(w io.Writer, run cache.Run) {
	set := run.Evaluation.Comparables
	lines := make([]string, len(set))
	for i, c := range set {
		lines[i] = fmt.Sprintf("%-40s | %8.2f km | %10s €/m²", truncate(c.Identifier, 40), c.DistanceKm, amount(c.UnitPrice, 2))
	}
	interactiveSelect(lines, func(i int) {
		renderRecord(w, set[i].Record, set[i].DistanceKm)
	})
}

func renderRecord(w io.Writer, r types.Record, distKm float64) {
	fmt.Fprintf(w, "Address           : %s\n", r.Identifier)
	fmt.Fprintf(w, "Location          : %.5f, %.5f\n", r.Latitude, r.Longitude)
	fmt.Fprintf(w, "Distance (km)     : %.3f\n", distKm)
	fmt.Fprintf(w, "Total Area (m²)   : %s\n", amount(r.TotalArea, 2))
	fmt.Fprintf(w, "Price             : %s\n", amount(r.Price, 2))
	fmt.Fprintf(w, "Price per m²      : %s\n", amount(r.UnitPrice, 2))
	if r.Zone != "" {
		fmt.Fprintf(w, "Zoning            : %s\n", r.Zone)
	}
}
