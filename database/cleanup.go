package database

import (
	"context"
	"fmt"
	"strings"

	"disbahn/apperrors"
)

// PruneRetiredWebhooks deletes every tracked post whose webhook is not in
// keep. Rows left behind by webhooks removed from the configuration would
// otherwise linger forever; their remote messages stay untouched. Nothing
// is pruned when keep is empty.
func (s *PostStore) PruneRetiredWebhooks(ctx context.Context, keep []uint64) (int64, error) {
	if len(keep) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(keep))
	placeholders = placeholders[:len(placeholders)-1] // remove last comma
	query := fmt.Sprintf("DELETE FROM posts WHERE webhook_id NOT IN (%s)", placeholders)

	args := make([]interface{}, len(keep))
	for i, id := range keep {
		args[i] = int64(id)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune retired webhooks: %w: %w", apperrors.ErrStoreUnavailable, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w: %w", apperrors.ErrStoreUnavailable, err)
	}

	return rowsAffected, nil
}
