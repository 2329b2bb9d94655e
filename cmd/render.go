package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"valuation/internal/appraisal"
	"valuation/internal/comps"
	"valuation/internal/idw"
	"valuation/internal/types"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderEvaluation prints the full report for one run.
func renderEvaluation(w io.Writer, ev appraisal.Evaluation) {
	renderTarget(w, ev.Target, ev.Params)
	fmt.Fprintln(w)

	if len(ev.Comparables) > 0 {
		renderComparables(w, ev.Comparables)
		fmt.Fprintln(w)
	}

	if ev.Result.InsufficientData {
		renderInsufficient(w, ev.Result)
		return
	}

	renderProcess(w, ev.Comparables, ev.Result)
	fmt.Fprintln(w)
	if ev.Summary != nil {
		fmt.Fprintln(w, resultBox(*ev.Summary, ev.Result))
	}
}

func renderTarget(w io.Writer, t types.Record, p appraisal.Params) {
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Target            : %s\n", t.Identifier)
	fmt.Fprintf(w, "Location          : %.5f, %.5f\n", t.Latitude, t.Longitude)
	fmt.Fprintf(w, "Total Area (m²)   : %s\n", amount(t.TotalArea, 2))
	fmt.Fprintf(w, "Price             : %s\n", amount(t.Price, 2))
	fmt.Fprintf(w, "Price per m²      : %s\n", amount(t.UnitPrice, 2))
	if t.Zone != "" {
		fmt.Fprintf(w, "Zoning            : %s\n", t.Zone)
	}
	fmt.Fprintf(w, "Search            : within %.1f km, area %s – %s m², power %g\n",
		p.MaxDistanceKm, amount(p.MinArea, 0), amount(p.MaxArea, 0), p.Power)
	fmt.Fprintln(w, strings.Repeat("-", 80))
}

func renderComparables(w io.Writer, set comps.Set) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Comparables (%d)", len(set))))
	fmt.Fprintf(w, "%-3s %-40s | %9s | %12s | %10s | %s\n", "#", "Address", "Dist (km)", "Area (m²)", "Price/m²", "Zone")
	for i, c := range set {
		fmt.Fprintf(w, "%-3d %-40s | %9.2f | %12s | %10s | %s\n",
			i+1, truncate(c.Identifier, 40), c.DistanceKm, amount(c.TotalArea, 0), amount(c.UnitPrice, 2), c.Zone)
	}
}

func renderProcess(w io.Writer, set comps.Set, res idw.Result) {
	fmt.Fprintln(w, titleStyle.Render("IDW process"))
	fmt.Fprintf(w, "%-40s | %10s | %9s | %12s | %8s | %12s\n",
		"Address", "Price/m²", "Dist (km)", fmt.Sprintf("1/d^%g", res.Power), "Weight %", "Weighted")
	for _, wt := range res.Weights {
		name := ""
		if wt.Index < len(set) {
			name = set[wt.Index].Identifier
		}
		raw := fmt.Sprintf("%.6g", wt.RawWeight)
		switch {
		case wt.Coincident:
			raw = "coincident"
		case wt.Saturated:
			raw = "overflow"
		}
		fmt.Fprintf(w, "%-40s | %10s | %9.2f | %12s | %7.2f%% | %12s\n",
			truncate(name, 40), amount(wt.Value, 2), wt.DistanceKm, raw, wt.WeightPercent, amount(wt.Contribution, 2))
	}
	if res.Coincident {
		fmt.Fprintln(w, mutedStyle.Render("A comparable shares the target location; its price is used directly."))
	}
}

func renderInsufficient(w io.Writer, res idw.Result) {
	color.New(color.FgYellow).Fprintf(w,
		"Needs at least %d valid comparables (found %d). Widen the distance or the area tolerance.\n",
		idw.MinComparables, res.Comparables)
}

func resultBox(s appraisal.Summary, res idw.Result) string {
	dev := "n/a"
	if s.DeviationPercent != nil {
		dev = fmt.Sprintf("%+.2f%%", *s.DeviationPercent)
	}
	lines := []string{
		titleStyle.Render("Estimated value"),
		fmt.Sprintf("Predicted price/m² : %s", amount(s.PredictedUnitPrice, 2)),
		fmt.Sprintf("Actual price/m²    : %s", amount(s.ActualUnitPrice, 2)),
		fmt.Sprintf("Predicted total    : %s", amount(s.PredictedTotal, 2)),
		fmt.Sprintf("Actual total       : %s", amount(s.ActualTotal, 2)),
		fmt.Sprintf("Deviation          : %s", dev),
		mutedStyle.Render(fmt.Sprintf("%d comparables, power %g", res.Comparables, res.Power)),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// amount formats v with thousands separators.
func amount(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', prec, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
