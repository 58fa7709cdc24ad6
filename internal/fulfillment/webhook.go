package fulfillment

import (
	"time"

	"github.com/google/uuid"
)

// WebhookLogEntry is one inbound carrier call, kept as an audit trail.
// Entries are not tenant-scoped: carriers address shipments by tracking number only.
type WebhookLogEntry struct {
	ID                    uuid.UUID  `json:"id"`
	Carrier               string     `json:"carrier"`
	TrackingNumber        string     `json:"trackingNumber"` // Filled by the sweep once parsed
	RawPayload            []byte     `json:"-"`
	Signature             string     `json:"-"`
	ReceivedAt            time.Time  `json:"receivedAt"`
	ProcessedSuccessfully bool       `json:"processedSuccessfully"`
	ProcessingAttempts    int        `json:"processingAttempts"`
	LastError             string     `json:"lastError,omitempty"`
	ProcessedAt           *time.Time `json:"processedAt,omitempty"`
}

// Parked reports whether the entry exhausted its attempts and awaits manual review.
func (e *WebhookLogEntry) Parked(maxAttempts int) bool {
	return !e.ProcessedSuccessfully && e.ProcessingAttempts >= maxAttempts
}
