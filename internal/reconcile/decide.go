package reconcile

import (
	"time"

	"minishop/internal/model"
)

// ExpiryThreshold is how long an order may stay pending before it is
// presumed abandoned and archived.
const ExpiryThreshold = 10 * time.Minute

type Action int

const (
	// ActionNone: the order is already settled locally, nothing to do.
	ActionNone Action = iota
	// ActionKeepPending: still waiting for payment, not yet expired.
	ActionKeepPending
	// ActionMarkPaid: converge the local record to paid.
	ActionMarkPaid
	// ActionMarkFailed: archive the order (remote cancellation or expiry).
	ActionMarkFailed
)

// Decide evaluates one merged order against the lifecycle state machine.
//
// Local terminal states are never revisited, regardless of what the sheet
// says: paid and failed are write-once. For everything else the remote
// status wins, and a pending order older than expiry is archived — unless
// its timestamp is unknown (0), which is explicitly excluded from the age
// check so an unparseable date never archives an order by itself.
func Decide(p Pair, now time.Time, expiry time.Duration) Action {
	if p.Local != nil && p.Local.Status.Terminal() {
		return ActionNone
	}

	switch p.EffectiveStatus() {
	case model.StatusPaid:
		return ActionMarkPaid
	case model.StatusFailed:
		return ActionMarkFailed
	}

	ts := p.EffectiveTimestamp()
	if ts > 0 && now.UnixMilli()-ts > expiry.Milliseconds() {
		return ActionMarkFailed
	}

	return ActionKeepPending
}
