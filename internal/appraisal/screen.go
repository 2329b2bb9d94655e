package appraisal

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"valuation/internal/types"
)

// ScreenOptions configures Screen. Each record is evaluated against all the
// others with an area band of its own area ± AreaTolerance.
type ScreenOptions struct {
	MaxDistanceKm float64
	AreaTolerance float64
	Power         float64

	// MinDeviation is the percentage by which the interpolated unit price
	// must exceed the recorded one for a record to be reported.
	MinDeviation float64

	// Workers defaults to runtime.NumCPU().
	Workers int
}

// Finding is a record whose recorded unit price is below its interpolated
// value by at least the configured deviation.
type Finding struct {
	Evaluation
	DeviationPercent float64 `json:"deviation_percent"`
}

// Screen evaluates every record with coordinates and a unit price as a target
// and returns the ones priced below their neighbourhood, largest deviation
// first. Records with too few comparables are skipped.
func Screen(ctx context.Context, records []types.Record, opts ScreenOptions) ([]Finding, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan types.Record)
	var (
		mu       sync.Mutex
		findings []Finding
		firstErr error
		wg       sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for target := range jobs {
				p := ParamsFromTolerance(target, opts.MaxDistanceKm, opts.AreaTolerance, opts.Power)
				ev, err := Evaluate(target, records, p)

				mu.Lock()
				switch {
				case err != nil:
					if firstErr == nil {
						firstErr = err
					}
				case ev.Summary != nil && ev.Summary.DeviationPercent != nil &&
					*ev.Summary.DeviationPercent >= opts.MinDeviation:
					findings = append(findings, Finding{Evaluation: ev, DeviationPercent: *ev.Summary.DeviationPercent})
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, r := range records {
		if !r.HasCoordinates() || !(r.UnitPrice > 0) || !(r.TotalArea >= 0) {
			continue
		}
		select {
		case jobs <- r:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].DeviationPercent != findings[j].DeviationPercent {
			return findings[i].DeviationPercent > findings[j].DeviationPercent
		}
		return findings[i].Target.Identifier < findings[j].Target.Identifier
	})
	return findings, nil
}
