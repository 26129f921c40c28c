package tierq

import (
	"context"
	"log/slog"
)

// TrainFunc retrains the geospatial model identified by key. A returned
// error marks the unit as failed; the producer performs no retry of its
// own (the flag stays set, so the model is selected again on a later
// opportunity or re-mark).
type TrainFunc func(ctx context.Context, key RegionKey) error

// ModelUpdateProducer coordinates deferrable model retraining against the
// scheduler. Marking a region persists a needs-update flag and submits a
// deduped secondary retraining job keyed by the region identity. The
// producer also implements UnitProducer, so a bounded execution opportunity
// can retrain exactly one model; its selection policy is finest specificity
// depth first.
type ModelUpdateProducer struct {
	scheduler *Scheduler
	store     UpdateStore
	train     TrainFunc
	logger    *slog.Logger
}

// NewModelUpdateProducer creates a producer submitting to the given
// scheduler and persisting flags in the given store.
func NewModelUpdateProducer(scheduler *Scheduler, store UpdateStore, train TrainFunc, logger *slog.Logger) *ModelUpdateProducer {
	return &ModelUpdateProducer{
		scheduler: scheduler,
		store:     store,
		train:     train,
		logger:    logger,
	}
}

// MarkRegion flags the model identified by key as needing retraining and
// submits a deduped secondary job for it. Re-marking a region whose job is
// still pending is a no-op.
func (p *ModelUpdateProducer) MarkRegion(ctx context.Context, key RegionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := p.store.MarkNeedsUpdate(ctx, key); err != nil {
		return err
	}

	p.logger.Debug("MarkRegion: submitting retraining job", "key", key)
	p.scheduler.AddSecondaryJob(key.Key(), true, func() {
		p.runUpdate(key)
	})
	return nil
}

// runUpdate retrains one model and clears its flag on success.
func (p *ModelUpdateProducer) runUpdate(key RegionKey) bool {
	ctx := context.Background()
	if err := p.train(ctx, key); err != nil {
		p.logger.Warn("runUpdate: training failed", "key", key, "error", err)
		return false
	}
	if err := p.store.ClearNeedsUpdate(ctx, key); err != nil {
		p.logger.Warn("runUpdate: failed to clear flag", "key", key, "error", err)
		return false
	}
	p.logger.Debug("runUpdate: model retrained", "key", key)
	return true
}

// NextUnit implements UnitProducer. It selects the flagged model with the
// finest specificity depth, or no unit when nothing is flagged.
func (p *ModelUpdateProducer) NextUnit() (DeferredUnit, bool) {
	keys, err := p.store.ListNeedsUpdate(context.Background())
	if err != nil {
		p.logger.Warn("NextUnit: failed to list flags", "error", err)
		// Storage trouble is a failed unit, not an empty selection.
		return func() bool { return false }, true
	}
	if len(keys) == 0 {
		return nil, false
	}

	key := keys[0]
	p.logger.Debug("NextUnit: selected model", "key", key)
	return func() bool {
		return p.runUpdate(key)
	}, true
}
