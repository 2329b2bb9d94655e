package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"valuation/internal/appraisal"
)

var (
	screenOpts         evalFlags
	screenMinDeviation float64
	screenJSON         bool
	screenInteractive  bool
)

var screenCmd = &cobra.Command{
	Use:   "screen [data-file]",
	Short: "List warehouses priced below their comparables",
	Long: `Evaluates every transaction against all the others and lists those whose
interpolated price per m² exceeds the recorded one by at least --min-deviation
percent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := screenOpts.dataPath(args)
		records, err := loadAll(screenOpts.sourceKind(path), path)
		if err != nil {
			return err
		}
		if screenOpts.zoning && len(records) > 0 {
			if err := annotateZoning(&records[0], records[1:]); err != nil {
				return err
			}
		}

		e := screenOpts.settings(cmd)
		start := time.Now()
		findings, err := appraisal.Screen(cmd.Context(), records, appraisal.ScreenOptions{
			MaxDistanceKm: e.MaxDistanceKm,
			AreaTolerance: e.AreaToleranceM2,
			Power:         e.Power,
			MinDeviation:  screenMinDeviation,
		})
		if err != nil {
			return err
		}
		log.Info("screened", "records", len(records), "findings", len(findings), "elapsed", time.Since(start).Truncate(time.Millisecond))

		out := cmd.OutOrStdout()
		if screenJSON {
			data, err := json.MarshalIndent(findings, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal findings: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "Found %d warehouses at least %.1f%% below their comparables\n", len(findings), screenMinDeviation)
		lines := make([]string, len(findings))
		for i, f := range findings {
			lines[i] = fmt.Sprintf("%-40s | %10s €/m² | IDW %10s | %+7.2f%% | n=%d",
				truncate(f.Target.Identifier, 40), amount(f.Target.UnitPrice, 2),
				amount(f.Result.Estimate, 2), f.DeviationPercent, len(f.Comparables))
			fmt.Fprintln(out, lines[i])
		}
		if screenInteractive {
			interactiveSelect(lines, func(i int) {
				renderEvaluation(out, findings[i].Evaluation)
			})
		}
		return nil
	},
}

func init() {
	screenOpts.bind(screenCmd, false)
	screenCmd.Flags().Float64Var(&screenMinDeviation, "min-deviation", 15, "minimum gap between interpolated and recorded price per m², in percent")
	screenCmd.Flags().BoolVar(&screenJSON, "json", false, "output findings as JSON")
	screenCmd.Flags().BoolVarP(&screenInteractive, "interactive", "i", false, "browse the findings")
	rootCmd.AddCommand(screenCmd)
}
