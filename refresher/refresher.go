package refresher

import (
	"context"
	"fmt"
	"time"

	"disbahn/discord"
	"disbahn/models"
	"disbahn/reconciler"

	"go.uber.org/zap"
)

// Source provides the current set of announcements.
type Source interface {
	Fetch(ctx context.Context) ([]models.Announcement, error)
}

// Pruner retires ledger rows of webhooks that left the configuration.
type Pruner interface {
	PruneRetiredWebhooks(ctx context.Context, keep []uint64) (int64, error)
}

// Refresher runs one full pass: fetch the feed, reconcile every
// announcement against every configured webhook, then drop ledger rows of
// webhooks no longer configured.
type Refresher struct {
	log     *zap.Logger
	source  Source
	engine  *reconciler.Reconciler
	pruner  Pruner
	targets []uint64
}

// New wires a Refresher for the given target webhooks.
func New(log *zap.Logger, source Source, engine *reconciler.Reconciler, pruner Pruner, targets []uint64) *Refresher {
	return &Refresher{
		log:     log,
		source:  source,
		engine:  engine,
		pruner:  pruner,
		targets: targets,
	}
}

// Refresh fetches the feed once and reconciles each announcement. A failing
// announcement or webhook is logged and never aborts the rest of the pass;
// only a failed fetch or a cancelled context is returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	started := time.Now()
	r.log.Debug("Refreshing feed")

	announcements, err := r.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch announcements: %w", err)
	}

	var created, edited, recreated, skipped, failed int
	for _, ann := range announcements {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := r.engine.Reconcile(ctx, ann.GUID, ann.Published, r.targets, discord.BuildPayload(ann))
		if err != nil {
			r.log.Error("Failed to reconcile announcement",
				zap.String("announcement_id", ann.GUID),
				zap.Error(err))
			failed += len(r.targets)
			continue
		}
		r.logOutcomes(result)

		created += result.Count(reconciler.ActionCreated)
		edited += result.Count(reconciler.ActionEdited)
		recreated += result.Count(reconciler.ActionRecreated)
		skipped += result.Count(reconciler.ActionSkipped)
		failed += result.Count(reconciler.ActionFailed)
	}

	r.prune(ctx)

	r.log.Info("Refresh pass finished",
		zap.Int("announcements", len(announcements)),
		zap.Int("created", created),
		zap.Int("edited", edited),
		zap.Int("recreated", recreated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// logOutcomes reports every per-webhook outcome of one announcement.
func (r *Refresher) logOutcomes(result reconciler.Result) {
	for _, o := range result.Outcomes {
		fields := []zap.Field{
			zap.String("announcement_id", result.AnnouncementID),
			zap.Uint64("webhook_id", o.WebhookID),
			zap.Uint64("message_id", o.MessageID),
		}
		switch o.Action {
		case reconciler.ActionCreated:
			r.log.Info("New announcement posted", fields...)
		case reconciler.ActionEdited:
			r.log.Info("Announcement updated", fields...)
		case reconciler.ActionRecreated:
			r.log.Info("Announcement posted again", fields...)
		case reconciler.ActionSkipped:
			// Unchanged announcements are the common case.
			r.log.Debug("Announcement unchanged", fields...)
		case reconciler.ActionFailed:
			r.log.Error("Failed to reconcile webhook", append(fields, zap.Error(o.Err))...)
		}
	}
}

// prune drops ledger rows of retired webhooks after a pass. Failures are
// logged only; the rows stay for the next pass.
func (r *Refresher) prune(ctx context.Context) {
	pruned, err := r.pruner.PruneRetiredWebhooks(ctx, r.targets)
	if err != nil {
		r.log.Error("Failed to prune retired webhooks", zap.Error(err))
		return
	}
	if pruned > 0 {
		r.log.Info("Pruned posts of retired webhooks", zap.Int64("rows", pruned))
	}
}
