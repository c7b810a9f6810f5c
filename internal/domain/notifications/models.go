package notifications

import "time"

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Message is the mail sent alongside a notification.
type Message struct {
	From          string
	To            string
	RecipientName string
	Type          string
	Subject       string
	Body          string
	// Reference is the document number the notification is about, empty for
	// ledger notices.
	Reference string
}
