package models

import "time"

// Post tracks the Discord message a single webhook currently shows for an
// announcement. The pair (AnnouncementID, WebhookID) is unique.
type Post struct {
	AnnouncementID string    `db:"announcement_id"`
	WebhookID      uint64    `db:"webhook_id"`
	MessageID      uint64    `db:"message_id"`
	LastUpdated    time.Time `db:"last_updated"` // publication date of the delivered revision, UTC
}
