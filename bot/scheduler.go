package bot

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// startScheduler begins periodic refresh passes. A pass that is still
// running when the next tick arrives is not run twice; the tick is skipped.
func (b *Bot) startScheduler(ctx context.Context) error {
	cronLog := cron.PrintfLogger(zap.NewStdLog(b.log))
	b.c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)))

	_, err := b.c.AddFunc(b.cronSpec, func() {
		b.refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to set up cron job: %w", err)
	}

	b.c.Start()
	b.log.Info("Scheduler started", zap.String("cron", b.cronSpec))
	return nil
}

// stopScheduler stops the cron loop and waits for a running pass to finish.
func (b *Bot) stopScheduler() {
	if b.c == nil {
		return
	}
	<-b.c.Stop().Done()
	b.log.Info("Scheduler stopped")
}
