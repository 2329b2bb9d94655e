package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"valuation/internal/appraisal"
	"valuation/internal/idw"
	"valuation/internal/types"
)

// Run is one evaluation as served by the Evaluator.
type Run struct {
	ID          string               `json:"run_id"`
	Cached      bool                 `json:"cached"`
	DatasetHash string               `json:"dataset_hash"`
	CreatedAt   time.Time            `json:"created_at"`
	Evaluation  appraisal.Evaluation `json:"evaluation"`
}

// Evaluator wraps appraisal.Evaluate with the cache. A nil store disables
// caching; every call then computes a fresh run.
type Evaluator struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEvaluator returns an Evaluator backed by store, which may be nil.
func NewEvaluator(store *Store, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, logger: logger, now: time.Now}
}

// Evaluate returns the stored evaluation for the same dataset and parameters
// when there is one, otherwise computes, stamps and stores a new run. Cache
// failures are logged and never fail the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, target types.Record, records []types.Record, p appraisal.Params) (Run, error) {
	if p.Power == 0 {
		p.Power = idw.DefaultPower
	}

	hash := DatasetHash(target, records)
	key := Key(hash, p)
	log := e.logger.With("dataset", hash[:12])

	store := e.store
	params, err := paramsJSON(p)
	if err != nil && store != nil {
		log.Warn("evaluation not cached", "error", err)
		store = nil
	}
	log = log.With("params", params)

	if store != nil {
		entry, ok, err := store.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("cache lookup failed", "error", err)
		case ok:
			var ev appraisal.Evaluation
			if err := json.Unmarshal([]byte(entry.ResultJSON), &ev); err != nil {
				log.Warn("discarding unreadable cache entry", "run_id", entry.RunID, "error", err)
				break
			}
			log.Debug("cache hit", "run_id", entry.RunID)
			return Run{ID: entry.RunID, Cached: true, DatasetHash: hash, CreatedAt: entry.CreatedAt, Evaluation: ev}, nil
		}
	}

	ev, err := appraisal.Evaluate(target, records, p)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:          uuid.NewString(),
		DatasetHash: hash,
		CreatedAt:   e.now().UTC(),
		Evaluation:  ev,
	}
	log.Debug("evaluated", "run_id", run.ID, "comparables", len(ev.Comparables), "status", ev.Result.Status)

	if store == nil {
		return run, nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Warn("evaluation not cached", "run_id", run.ID, "error", err)
		return run, nil
	}
	err = store.Put(ctx, Entry{
		Key:         key,
		RunID:       run.ID,
		DatasetHash: hash,
		ParamsJSON:  params,
		ResultJSON:  string(body),
		CreatedAt:   run.CreatedAt,
	})
	if err != nil {
		log.Warn("evaluation not cached", "run_id", run.ID, "error", err)
	}
	return run, nil
}
