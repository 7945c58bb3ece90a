// Package domain contains the core entities of the ingestion subsystem.
package domain

import "time"

// EmailRecord is one normalized message as stored durably.
// The pair (TenantID, ExternalID) is the idempotency key: records are
// created once on first ingestion and never mutated or deleted afterwards.
type EmailRecord struct {
	ID              int64
	TenantID        string
	ExternalID      string
	ThreadID        string
	Subject         string
	Sender          string
	Recipients      []string
	CC              []string
	BCC             []string
	Body            string
	Labels          []string
	Timestamp       time.Time
	ImportanceScore float64
	IsPromotion     bool
	CreatedAt       time.Time
}

// IngestItem is an inbound normalized message before persistence.
// Both the push-batch path and the provider clients produce this shape.
type IngestItem struct {
	ExternalID      string    `json:"external_id"`
	ThreadID        string    `json:"thread_id"`
	Subject         string    `json:"subject"`
	Sender          string    `json:"sender"`
	Recipients      []string  `json:"recipients"`
	CC              []string  `json:"cc"`
	BCC             []string  `json:"bcc"`
	Body            string    `json:"body"`
	Labels          []string  `json:"labels"`
	Timestamp       time.Time `json:"timestamp"`
	ImportanceScore float64   `json:"importance_score"`
	IsPromotion     bool      `json:"is_promotion"`
}

// ToRecord converts an item into a record owned by the given tenant.
// A missing thread id falls back to the message's own id (singleton thread),
// and a zero timestamp falls back to the current time.
func (it *IngestItem) ToRecord(tenantID string) *EmailRecord {
	threadID := it.ThreadID
	if threadID == "" {
		threadID = it.ExternalID
	}

	ts := it.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &EmailRecord{
		TenantID:        tenantID,
		ExternalID:      it.ExternalID,
		ThreadID:        threadID,
		Subject:         it.Subject,
		Sender:          it.Sender,
		Recipients:      it.Recipients,
		CC:              it.CC,
		BCC:             it.BCC,
		Body:            it.Body,
		Labels:          it.Labels,
		Timestamp:       ts,
		ImportanceScore: it.ImportanceScore,
		IsPromotion:     it.IsPromotion,
	}
}
