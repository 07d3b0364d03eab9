package bot

import (
	"context"
	"sync"

	"disbahn/refresher"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Bot drives scheduled refresh passes in daemon mode.
type Bot struct {
	log          *zap.Logger
	refresher    *refresher.Refresher
	cronSpec     string
	runAtStartup bool

	c  *cron.Cron
	wg sync.WaitGroup
}

// New creates a Bot refreshing on the given cron schedule.
func New(log *zap.Logger, r *refresher.Refresher, cronSpec string, runAtStartup bool) *Bot {
	return &Bot{
		log:          log,
		refresher:    r,
		cronSpec:     cronSpec,
		runAtStartup: runAtStartup,
	}
}

// Run starts the scheduler and blocks until ctx is cancelled. When
// configured it performs an immediate pass first. A pass still running at
// shutdown is waited for before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.startScheduler(ctx); err != nil {
		return err
	}

	if b.runAtStartup {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.log.Info("Performing initial refresh on startup")
			b.refresh(ctx)
		}()
	} else {
		b.log.Info("Skipping initial refresh on startup as per configuration")
	}

	<-ctx.Done()

	b.stopScheduler()
	b.wg.Wait()
	return nil
}

// refresh runs one pass and reports its failure without propagating it; the
// next scheduled pass gets a fresh chance.
func (b *Bot) refresh(ctx context.Context) {
	if err := b.refresher.Refresh(ctx); err != nil {
		b.log.Error("Refresh failed", zap.Error(err))
	}
}
