package models

import "time"

const (
	WebhookStatusHandled = "handled"
	WebhookStatusIgnored = "ignored"
	WebhookStatusFailed  = "failed"
)

// WebhookEvent records the outcome of one provider event, keyed by the
// provider's event id so redeliveries can be detected.
type WebhookEvent struct {
	ID          string    `gorm:"size:255;primary_key" json:"id"`
	Type        string    `gorm:"size:100;not null;index" json:"type"`
	Status      string    `gorm:"size:20;not null" json:"status"`
	ObjectID    string    `gorm:"size:255" json:"objectId,omitempty"`
	OrderID     string    `gorm:"size:255;index" json:"orderId,omitempty"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	ReceivedAt  time.Time `gorm:"not null;index" json:"receivedAt"`
	ProcessedAt time.Time `json:"processedAt"`
}
