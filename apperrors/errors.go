package apperrors

import (
	"errors"
)

// Failure classes shared between the post ledger, the webhook client and the
// reconciler. Call sites wrap these with fmt.Errorf("...: %w", ...) and
// callers classify with errors.Is.
var (
	// ErrStoreUnavailable marks ledger reads or writes that could not be
	// performed.
	ErrStoreUnavailable = errors.New("post ledger unavailable")

	// ErrDeliveryFailed marks a webhook call rejected by Discord or lost to
	// the network.
	ErrDeliveryFailed = errors.New("webhook delivery failed")

	// ErrMessageGone marks an edit whose target message no longer exists on
	// the webhook's channel. The reconciler recovers by posting a fresh
	// message; it never surfaces this error to callers.
	ErrMessageGone = errors.New("tracked message gone")

	// ErrDuplicateKey marks an insert that collided with an existing
	// (announcement, webhook) row. The ledger's atomic upsert leaves no
	// code path that produces it; a store reporting it is misbehaving.
	ErrDuplicateKey = errors.New("duplicate post record")
)
