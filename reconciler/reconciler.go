package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"disbahn/apperrors"
	"disbahn/models"

	"go.uber.org/zap"
)

// Payload is the rendered announcement content handed to the delivery
// client. The reconciler never inspects it.
type Payload = any

// Ledger persists which message each webhook shows for an announcement.
// *database.PostStore implements it.
type Ledger interface {
	Get(ctx context.Context, announcementID string, webhookID uint64) (models.Post, bool, error)
	ListForAnnouncement(ctx context.Context, announcementID string) ([]models.Post, error)
	Upsert(ctx context.Context, post models.Post) error
	Delete(ctx context.Context, announcementID string, webhookID uint64) error
}

// Delivery posts and edits webhook messages. Edit reports a missing target
// message as apperrors.ErrMessageGone.
type Delivery interface {
	Create(ctx context.Context, webhookID uint64, payload Payload) (uint64, error)
	Edit(ctx context.Context, webhookID uint64, messageID uint64, payload Payload) error
}

// Reconciler drives the remote state of every target webhook to match the
// newest revision of an announcement, using the ledger to decide between
// posting a new message and editing the tracked one.
type Reconciler struct {
	log      *zap.Logger
	ledger   Ledger
	delivery Delivery
}

// New returns a Reconciler on the given ledger and delivery client.
func New(log *zap.Logger, ledger Ledger, delivery Delivery) *Reconciler {
	return &Reconciler{
		log:      log,
		ledger:   ledger,
		delivery: delivery,
	}
}

// Reconcile brings every target webhook up to date with the given revision
// of the announcement. version is the announcement's publication timestamp;
// a target whose tracked record already carries version or newer is left
// alone. Targets are processed concurrently and one webhook's failure never
// blocks the others. The returned Result holds one outcome per target, in
// target order. Reconcile itself fails only when the tracked records cannot
// be loaded, since guessing would risk duplicate messages.
func (r *Reconciler) Reconcile(ctx context.Context, announcementID string, version time.Time, targets []uint64, payload Payload) (Result, error) {
	records, err := r.ledger.ListForAnnouncement(ctx, announcementID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load tracked posts for announcement %s: %w", announcementID, err)
	}
	tracked := make(map[uint64]models.Post, len(records))
	for _, rec := range records {
		tracked[rec.WebhookID] = rec
	}

	r.log.Debug("Reconciling announcement",
		zap.String("announcement_id", announcementID),
		zap.Time("version", version),
		zap.Int("targets", len(targets)),
		zap.Int("tracked", len(records)))

	result := Result{
		AnnouncementID: announcementID,
		Outcomes:       make([]Outcome, len(targets)),
	}

	var wg sync.WaitGroup
	for i, webhookID := range targets {
		rec, exists := tracked[webhookID]
		if exists && !rec.LastUpdated.Before(version) {
			result.Outcomes[i] = Outcome{WebhookID: webhookID, Action: ActionSkipped, MessageID: rec.MessageID}
			continue
		}

		wg.Add(1)
		go func(i int, webhookID uint64, rec models.Post, exists bool) {
			defer wg.Done()
			result.Outcomes[i] = r.reconcileTarget(ctx, announcementID, version, webhookID, rec, exists, payload)
		}(i, webhookID, rec, exists)
	}
	wg.Wait()

	return result, nil
}

// reconcileTarget converges a single webhook: edit the tracked message,
// fall back to a fresh post when it has been deleted remotely, or post the
// first message when nothing is tracked yet.
func (r *Reconciler) reconcileTarget(ctx context.Context, announcementID string, version time.Time, webhookID uint64, rec models.Post, exists bool, payload Payload) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{
			WebhookID: webhookID,
			Action:    ActionFailed,
			Err:       fmt.Errorf("webhook %d not attempted: %w", webhookID, err),
		}
	}

	var (
		action    Action
		messageID uint64
		err       error
	)
	if exists {
		action = ActionEdited
		messageID = rec.MessageID
		err = r.delivery.Edit(ctx, webhookID, rec.MessageID, payload)
		if errors.Is(err, apperrors.ErrMessageGone) {
			r.log.Warn("Tracked message gone, posting replacement",
				zap.String("announcement_id", announcementID),
				zap.Uint64("webhook_id", webhookID),
				zap.Uint64("message_id", rec.MessageID))
			action = ActionRecreated
			messageID, err = r.delivery.Create(ctx, webhookID, payload)
		}
	} else {
		action = ActionCreated
		messageID, err = r.delivery.Create(ctx, webhookID, payload)
	}
	if err != nil {
		return Outcome{
			WebhookID: webhookID,
			Action:    ActionFailed,
			Err:       fmt.Errorf("failed to deliver announcement %s to webhook %d: %w", announcementID, webhookID, err),
		}
	}

	// The remote message exists now. Record it even when the caller has
	// already given up waiting, otherwise the next pass would post a
	// duplicate.
	post := models.Post{
		AnnouncementID: announcementID,
		WebhookID:      webhookID,
		MessageID:      messageID,
		LastUpdated:    version,
	}
	if err := r.ledger.Upsert(context.WithoutCancel(ctx), post); err != nil {
		return Outcome{
			WebhookID: webhookID,
			Action:    ActionFailed,
			MessageID: messageID,
			Err:       fmt.Errorf("failed to track message %d for webhook %d: %w", messageID, webhookID, err),
		}
	}

	return Outcome{WebhookID: webhookID, Action: action, MessageID: messageID}
}
