package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/archive"
	"github.com/ajitpratap0/nsagency/pkg/checkpoint"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/logger"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// RunRequest describes one sync invocation. A zero CutDate starts from
// the stored checkpoint.
type RunRequest struct {
	Kind       string
	Params     WindowParams
	MappingKey string
	Upsert     bool
}

// RunReport summarizes a finished run.
type RunReport struct {
	Kind            string           `json:"kind"`
	Window          models.Window    `json:"window"`
	Entities        []*models.Entity `json:"entities"`
	Transformed     int              `json:"transformed"`
	TransformFailed int              `json:"transform_failed"`
	Upserted        int              `json:"upserted"`
	UpsertFailed    int              `json:"upsert_failed"`
	Archive         string           `json:"archive,omitempty"`
	Checkpoint      time.Time        `json:"checkpoint,omitempty"`
	Duration        time.Duration    `json:"duration"`
}

// Runner wraps the engine with checkpointing and archiving.
type Runner struct {
	engine *Engine
	store  checkpoint.Store
	sink   archive.Sink
	logger *zap.Logger
}

// NewRunner creates a runner. A nil store or sink disables that step.
func NewRunner(engine *Engine, store checkpoint.Store, sink archive.Sink, logger *zap.Logger) *Runner {
	if store == nil {
		store = checkpoint.NopStore{}
	}
	if sink == nil {
		sink = archive.NopSink{}
	}
	if logger == nil {
		logger = engine.logger
	}
	return &Runner{engine: engine, store: store, sink: sink, logger: logger}
}

// Run syncs one kind, optionally upserts the result, archives the batch
// and advances the checkpoint to the latest update time among the
// entities that succeeded.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	start := time.Now()
	ctx = logger.WithKind(ctx, req.Kind)
	log := logger.FromContext(ctx, r.logger)

	params := req.Params
	if params.CutDate.IsZero() {
		cut, ok, err := r.store.Load(ctx, req.Kind)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "no cut date given and no checkpoint stored for %s", req.Kind)
		}
		params.CutDate = cut
		log.Info("starting from checkpoint", zap.Time("cut_date", cut))
	}

	w, err := r.engine.NewWindow(req.Kind, params)
	if err != nil {
		return nil, err
	}

	entities, err := r.engine.SyncEntities(ctx, req.Kind, w, req.MappingKey)
	if err != nil {
		return nil, err
	}
	report := &RunReport{Kind: req.Kind, Window: w, Entities: entities}
	for _, ent := range entities {
		if ent.Failed() {
			report.TransformFailed++
		} else {
			report.Transformed++
		}
	}

	if req.Upsert && report.Transformed > 0 {
		if _, err := r.engine.UpsertEntities(ctx, entities); err != nil {
			return nil, err
		}
		for _, ent := range entities {
			if ent.TxStatus == models.StatusSuccess {
				report.Upserted++
			} else if ent.TgtID == models.UnwrittenTargetID {
				report.UpsertFailed++
			}
		}
	}

	if len(entities) > 0 {
		location, err := r.sink.Write(ctx, req.Kind, entities)
		if err != nil {
			return report, err
		}
		report.Archive = location
	}

	cp := latestSuccess(entities, req.Upsert)
	if cp.IsZero() && report.TransformFailed+report.UpsertFailed > 0 {
		log.Warn("checkpoint held back by failed entities")
	}
	if !cp.IsZero() {
		if err := r.store.Save(ctx, req.Kind, cp); err != nil {
			return report, err
		}
		report.Checkpoint = cp
	}

	report.Duration = time.Since(start)
	log.Info("run finished",
		zap.Int("entities", len(entities)),
		zap.Int("transform_failed", report.TransformFailed),
		zap.Int("upserted", report.Upserted),
		zap.Int("upsert_failed", report.UpsertFailed),
		zap.String("archive", report.Archive),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// latestSuccess returns the newest UpdatedAt among successful entities
// that are older than every unsuccessful one, so the next run fetches the
// failures again. When upserted, entities the target did not accept count
// as unsuccessful. A failure without an update time holds the checkpoint.
func latestSuccess(entities []*models.Entity, upserted bool) time.Time {
	unsuccessful := func(ent *models.Entity) bool {
		return ent.Failed() || (upserted && ent.TxStatus != models.StatusSuccess)
	}

	var (
		latest   time.Time
		boundary time.Time
		failed   bool
	)
	for _, ent := range entities {
		if unsuccessful(ent) {
			if !failed || ent.UpdatedAt.Before(boundary) {
				boundary = ent.UpdatedAt
			}
			failed = true
		}
	}
	for _, ent := range entities {
		if unsuccessful(ent) || (failed && !ent.UpdatedAt.Before(boundary)) {
			continue
		}
		if ent.UpdatedAt.After(latest) {
			latest = ent.UpdatedAt
		}
	}
	return latest
}
