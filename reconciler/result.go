package reconciler

import "errors"

// Action classifies what a reconcile pass did for one webhook.
type Action int

const (
	// ActionCreated means no message was tracked yet and a new one was posted.
	ActionCreated Action = iota
	// ActionEdited means the tracked message was updated in place.
	ActionEdited
	// ActionRecreated means the tracked message had been deleted remotely and
	// a replacement was posted under a new message ID.
	ActionRecreated
	// ActionSkipped means the tracked message already shows this revision.
	ActionSkipped
	// ActionFailed means the webhook could not be brought up to date.
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionEdited:
		return "edited"
	case ActionRecreated:
		return "recreated"
	case ActionSkipped:
		return "skipped"
	case ActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of reconciling a single target webhook.
type Outcome struct {
	WebhookID uint64
	Action    Action
	MessageID uint64 // message now tracked for this webhook, zero when none was delivered
	Err       error  // set only when Action is ActionFailed
}

// Result aggregates one reconcile pass: one outcome per target webhook, in
// target order.
type Result struct {
	AnnouncementID string
	Outcomes       []Outcome
}

// Count returns how many outcomes ended with the given action.
func (r Result) Count(action Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}

// Failed returns the outcomes whose webhook could not be brought up to date.
func (r Result) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Action == ActionFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err folds every per-webhook failure into a single error. It is nil when
// all targets converged or were already up to date.
func (r Result) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Action == ActionFailed && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
