package main

import (
	"errors"

	"github.com/spf13/cobra"

	"valuation/internal/dataset"
)

var (
	exportOpts evalFlags
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export [data-file]",
	Short: "Write the target and its weighted comparables to a point shapefile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOut == "" {
			return errors.New("--out is required")
		}

		evaluator, closeCache, err := openEvaluator(exportOpts.noCache)
		if err != nil {
			return err
		}
		defer closeCache()

		target, candidates, err := exportOpts.load(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}
		run, err := evaluator.Evaluate(cmd.Context(), target, candidates, exportOpts.params(cmd, target))
		if err != nil {
			return err
		}

		ev := run.Evaluation
		if err := dataset.ExportShapefile(exportOut, ev.Target, ev.Comparables, ev.Result.Weights); err != nil {
			return err
		}
		log.Info("exported", "file", exportOut, "comparables", len(ev.Comparables), "run_id", run.ID)
		if ev.Result.InsufficientData {
			renderInsufficient(cmd.ErrOrStderr(), ev.Result)
		}
		cmd.Printf("Wrote %d comparables to %s\n", len(ev.Comparables), exportOut)
		return nil
	},
}

func init() {
	exportOpts.bind(exportCmd, true)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output .shp path")
	rootCmd.AddCommand(exportCmd)
}
