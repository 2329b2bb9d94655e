package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"valuation/internal/appraisal"
	"valuation/internal/cache"
	"valuation/internal/config"
	"valuation/internal/database"
	"valuation/internal/dataset"
	"valuation/internal/types"
	"valuation/internal/zoning"
)

// evalFlags are the data and parameter flags shared by evaluate, export and
// screen. Unset flags fall back to the config file.
type evalFlags struct {
	source        string
	target        string
	maxDistance   float64
	areaTolerance float64
	minArea       float64
	maxArea       float64
	power         float64
	noCache       bool
	zoning        bool
}

// bind registers the flags. Commands that evaluate a single target also get
// --target, the explicit area band and --no-cache.
func (f *evalFlags) bind(cmd *cobra.Command, singleTarget bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.source, "source", "", "data source: csv, shapefile or oracle (default from config or file extension)")
	fs.Float64Var(&f.maxDistance, "max-distance", 0, "maximum distance to a comparable in km")
	fs.Float64Var(&f.areaTolerance, "area-tolerance", 0, "area band half-width around the target area in m²")
	fs.Float64Var(&f.power, "power", 0, "IDW distance exponent")
	fs.BoolVar(&f.zoning, "zoning", false, "tag records with zoning districts from the configured layers")
	if !singleTarget {
		return
	}
	fs.StringVar(&f.target, "target", "", "identifier of the target warehouse (default: first record)")
	fs.Float64Var(&f.minArea, "min-area", 0, "explicit lower bound of the area band in m²")
	fs.Float64Var(&f.maxArea, "max-area", 0, "explicit upper bound of the area band in m²")
	fs.BoolVar(&f.noCache, "no-cache", false, "do not read or write the evaluation cache")
}

// settings merges the config file with flags the user set explicitly.
func (f *evalFlags) settings(cmd *cobra.Command) config.Evaluation {
	e := cfg.Evaluation
	fs := cmd.Flags()
	if fs.Changed("max-distance") {
		e.MaxDistanceKm = f.maxDistance
	}
	if fs.Changed("area-tolerance") {
		e.AreaToleranceM2 = f.areaTolerance
	}
	if fs.Changed("power") {
		e.Power = f.power
	}
	return e
}

// params builds the evaluation parameters for target.
func (f *evalFlags) params(cmd *cobra.Command, target types.Record) appraisal.Params {
	e := f.settings(cmd)
	p := appraisal.ParamsFromTolerance(target, e.MaxDistanceKm, e.AreaToleranceM2, e.Power)
	if cmd.Flags().Changed("min-area") {
		p.MinArea = f.minArea
	}
	if cmd.Flags().Changed("max-area") {
		p.MaxArea = f.maxArea
	}
	return p
}

func (f *evalFlags) dataPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Data.Path
}

func (f *evalFlags) targetID() string {
	if f.target != "" {
		return f.target
	}
	return cfg.Data.Target
}

// sourceKind resolves the data source from the flag, the config file and
// finally the file extension.
func (f *evalFlags) sourceKind(path string) string {
	kind := f.source
	if kind == "" && cfg.Data.Source != config.SourceCSV {
		kind = cfg.Data.Source
	}
	if kind == "" {
		if strings.EqualFold(filepath.Ext(path), ".shp") {
			return config.SourceShapefile
		}
		return config.SourceCSV
	}
	return strings.ToLower(kind)
}

// loadAll reads every record of a file source.
func loadAll(kind, path string) ([]types.Record, error) {
	if path == "" {
		return nil, errors.New("no data file given (argument or data.path in config)")
	}
	switch kind {
	case config.SourceCSV:
		return dataset.LoadCSVFile(path)
	case config.SourceShapefile:
		return dataset.LoadShapefile(path)
	}
	return nil, fmt.Errorf("source %q cannot be loaded as a file", kind)
}

// load returns the target and its candidate records. The Oracle source reads
// only the rows around the target.
func (f *evalFlags) load(ctx context.Context, cmd *cobra.Command, args []string) (types.Record, []types.Record, error) {
	start := time.Now()
	path := f.dataPath(args)
	kind := f.sourceKind(path)

	var (
		target     types.Record
		candidates []types.Record
	)
	switch kind {
	case config.SourceOracle:
		id := f.targetID()
		if id == "" {
			return target, nil, errors.New("the oracle source needs --target")
		}
		db, err := database.NewDatabase(ctx, database.LoadDatabaseConfig())
		if err != nil {
			return target, nil, err
		}
		defer db.Close()

		if target, err = db.QueryTarget(ctx, id); err != nil {
			return target, nil, err
		}
		if !target.HasCoordinates() {
			return target, nil, fmt.Errorf("target %q: %w", target.Identifier, types.ErrInvalidCoordinate)
		}
		if candidates, err = db.QueryComparables(ctx, target.Point(), f.settings(cmd).MaxDistanceKm); err != nil {
			return target, nil, err
		}
	default:
		records, err := loadAll(kind, path)
		if err != nil {
			return target, nil, err
		}
		if target, candidates, err = dataset.SelectTarget(records, f.targetID()); err != nil {
			return target, nil, err
		}
	}
	log.Debug("dataset loaded", "source", kind, "candidates", len(candidates), "elapsed", time.Since(start))

	if f.zoning {
		if err := annotateZoning(&target, candidates); err != nil {
			return target, nil, err
		}
	}
	return target, candidates, nil
}

func annotateZoning(target *types.Record, candidates []types.Record) error {
	if len(cfg.Zoning.Layers) == 0 {
		return errors.New("--zoning needs zoning.layers in the config file")
	}
	proj, err := zoning.ProjectionByName(cfg.Zoning.Projection)
	if err != nil {
		return err
	}
	layer, err := zoning.Load(proj, cfg.Zoning.Layers...)
	if err != nil {
		return err
	}

	one := []types.Record{*target}
	layer.Annotate(one)
	*target = one[0]
	tagged := layer.Annotate(candidates)
	log.Debug("zoning annotated", "polygons", layer.Len(), "tagged", tagged)
	return nil
}

// openEvaluator returns the cached evaluator and a close function. An
// unusable cache database is logged and evaluation continues without it.
func openEvaluator(noCache bool) (*cache.Evaluator, func(), error) {
	if noCache || !cfg.Cache.Enabled {
		return cache.NewEvaluator(nil, log), func() {}, nil
	}
	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		log.Warn("cache disabled", "path", cfg.Cache.Path, "error", err)
		return cache.NewEvaluator(nil, log), func() {}, nil
	}
	return cache.NewEvaluator(store, log), func() { store.Close() }, nil
}
