package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"disbahn/apperrors"
	"disbahn/models"

	"github.com/mattn/go-sqlite3"
)

// PostStore records which Discord message each webhook currently shows for
// an announcement. All methods are safe for concurrent use; competing writes
// for the same (announcement, webhook) pair resolve by newest last_updated.
type PostStore struct {
	db *sql.DB
}

// NewPostStore wraps an initialized database handle.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// Get returns the tracked post for one announcement/webhook pair. The bool
// reports whether a record exists.
func (s *PostStore) Get(ctx context.Context, announcementID string, webhookID uint64) (models.Post, bool, error) {
	query := `SELECT announcement_id, webhook_id, message_id, last_updated
              FROM posts WHERE announcement_id = ? AND webhook_id = ?`

	var (
		post        models.Post
		whID, msgID int64
		updated     int64
	)
	err := s.db.QueryRowContext(ctx, query, announcementID, int64(webhookID)).
		Scan(&post.AnnouncementID, &whID, &msgID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, false, nil
	}
	if err != nil {
		return models.Post{}, false, fmt.Errorf("failed to query post %s for webhook %d: %w: %w",
			announcementID, webhookID, apperrors.ErrStoreUnavailable, err)
	}

	post.WebhookID = uint64(whID)
	post.MessageID = uint64(msgID)
	post.LastUpdated = time.Unix(updated, 0).UTC()
	return post, true, nil
}

// ListForAnnouncement returns every tracked post for the announcement,
// ordered by webhook ID.
func (s *PostStore) ListForAnnouncement(ctx context.Context, announcementID string) ([]models.Post, error) {
	query := `SELECT announcement_id, webhook_id, message_id, last_updated
              FROM posts WHERE announcement_id = ? ORDER BY webhook_id`

	rows, err := s.db.QueryContext(ctx, query, announcementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts for announcement %s: %w: %w",
			announcementID, apperrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var results []models.Post
	for rows.Next() {
		var (
			post        models.Post
			whID, msgID int64
			updated     int64
		)
		if err := rows.Scan(&post.AnnouncementID, &whID, &msgID, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w: %w", apperrors.ErrStoreUnavailable, err)
		}
		post.WebhookID = uint64(whID)
		post.MessageID = uint64(msgID)
		post.LastUpdated = time.Unix(updated, 0).UTC()
		results = append(results, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts for announcement %s: %w: %w",
			announcementID, apperrors.ErrStoreUnavailable, err)
	}

	return results, nil
}

// Upsert inserts the post or refreshes the existing row in a single atomic
// statement. Rows only move forward: an upsert carrying an older
// last_updated than the stored row leaves the row untouched, so replaying
// the same write or racing a newer one is harmless.
func (s *PostStore) Upsert(ctx context.Context, post models.Post) error {
	query := `
    INSERT INTO posts (announcement_id, webhook_id, message_id, last_updated)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(announcement_id, webhook_id) DO UPDATE SET
        message_id = excluded.message_id,
        last_updated = excluded.last_updated
    WHERE excluded.last_updated >= posts.last_updated;`

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w: %w", apperrors.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		post.AnnouncementID,
		int64(post.WebhookID),
		int64(post.MessageID),
		post.LastUpdated.Unix(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("failed to upsert post %s for webhook %d: %w: %w",
				post.AnnouncementID, post.WebhookID, apperrors.ErrDuplicateKey, err)
		}
		return fmt.Errorf("failed to upsert post %s for webhook %d: %w: %w",
			post.AnnouncementID, post.WebhookID, apperrors.ErrStoreUnavailable, err)
	}

	return nil
}

// Delete removes the record for one announcement/webhook pair. Deleting an
// absent record is not an error.
func (s *PostStore) Delete(ctx context.Context, announcementID string, webhookID uint64) error {
	query := `DELETE FROM posts WHERE announcement_id = ? AND webhook_id = ?`

	if _, err := s.db.ExecContext(ctx, query, announcementID, int64(webhookID)); err != nil {
		return fmt.Errorf("failed to delete post %s for webhook %d: %w: %w",
			announcementID, webhookID, apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// TrackedWebhooks returns the IDs of all webhooks that currently hold a
// message for the announcement, ordered ascending.
func (s *PostStore) TrackedWebhooks(ctx context.Context, announcementID string) ([]uint64, error) {
	query := `SELECT webhook_id FROM posts WHERE announcement_id = ? ORDER BY webhook_id`

	rows, err := s.db.QueryContext(ctx, query, announcementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks for announcement %s: %w: %w",
			announcementID, apperrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan webhook ID: %w: %w", apperrors.ErrStoreUnavailable, err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhooks for announcement %s: %w: %w",
			announcementID, apperrors.ErrStoreUnavailable, err)
	}

	return ids, nil
}
