package models

// TouchStatus is the delivery lifecycle state of a Touch.
type TouchStatus string

const (
	StatusPending   TouchStatus = "pending"
	StatusSent      TouchStatus = "sent"
	StatusDelivered TouchStatus = "delivered"
	StatusOpened    TouchStatus = "opened"
	StatusClicked   TouchStatus = "clicked"
	StatusReplied   TouchStatus = "replied"
	StatusBounced   TouchStatus = "bounced"
	StatusFailed    TouchStatus = "failed"
)

// Rank orders statuses along the forward-only progression lattice.
// Bounced and failed sit low in the lattice but are terminal, so a
// late higher-rank event can never override them once set.
func (s TouchStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusOpened:
		return 3
	case StatusClicked:
		return 4
	case StatusReplied:
		return 5
	case StatusBounced:
		return 1
	case StatusFailed:
		return 0
	}
	return -1
}

// Terminal reports whether no further status transition is allowed.
func (s TouchStatus) Terminal() bool {
	return s == StatusReplied || s == StatusBounced || s == StatusFailed
}

// StatusForEvent maps a delivery event type to the status it implies.
// Unknown event types map to the empty status and leave the touch
// untouched (the event is still logged).
func StatusForEvent(eventType string) (TouchStatus, bool) {
	switch eventType {
	case "sent":
		return StatusSent, true
	case "delivered":
		return StatusDelivered, true
	case "opened", "open":
		return StatusOpened, true
	case "clicked", "click":
		return StatusClicked, true
	case "replied":
		return StatusReplied, true
	case "bounced", "bounce":
		return StatusBounced, true
	case "failed":
		return StatusFailed, true
	}
	return "", false
}

// NextStatus is the pure reducer enforcing monotonic progression.
// It returns the status a touch should hold after observing an event
// implying next, given its current status. Events may arrive in any
// order from three independent providers; whatever the order, the
// result converges on the maximum-rank valid status.
//
// Rules:
//   - a terminal status never changes
//   - bounced is reachable from pending or sent
//   - failed is reachable from pending only
//   - otherwise the status advances only when the rank increases
func NextStatus(current, next TouchStatus) TouchStatus {
	if current.Terminal() {
		return current
	}
	switch next {
	case StatusBounced:
		if current == StatusPending || current == StatusSent {
			return StatusBounced
		}
		return current
	case StatusFailed:
		if current == StatusPending {
			return StatusFailed
		}
		return current
	}
	if next.Rank() > current.Rank() {
		return next
	}
	return current
}
