package approval

import "context"

type EventType string

const (
	EventSubmitted EventType = "document.submitted"
	EventAdvanced  EventType = "document.advanced"
	EventApproved  EventType = "document.approved"
	EventRejected  EventType = "document.rejected"
	EventCancelled EventType = "document.cancelled"
	EventDelegated EventType = "document.delegated"
)

// Event is handed to the notifier after a transition has committed.
type Event struct {
	Type       EventType
	DocumentID string
	DocNumber  string
	Title      string
	ActorID    string
	Recipients []string
	Comment    string
}

// Notifier delivers workflow events. Delivery is fire-and-forget: failures
// are the notifier's to log.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// Recorder counts workflow transitions.
type Recorder interface {
	IncTransition(name string)
	IncLeaveUsed()
	IncLeaveRestored()
}
