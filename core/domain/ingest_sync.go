package domain

import (
	"strings"
	"time"
)

// Provider identifies a mailbox provider.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
)

// Cursor is a provider-tagged opaque sync position.
// The stored value stays untyped (a Gmail historyId or a Graph deltaLink),
// but the tag prevents cross-feeding one provider's cursor into another.
type Cursor struct {
	Provider Provider
	Value    string
}

// Credentials are opaque provider-scoped OAuth tokens.
// Address identifies the mailbox for providers that support multiple
// accounts per tenant; it may be empty.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Address      string `json:"address"`
}

// MailboxSyncState is the per (tenant, provider identity) cursor record.
// At most one row exists per (TenantID, ProviderKey); the cursor only moves
// forward, and only after the corresponding page has been durably upserted.
type MailboxSyncState struct {
	ID           int64
	TenantID     string
	ProviderKey  string
	AccessToken  string
	RefreshToken string
	LastSyncedAt *time.Time
	Cursor       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncResult summarizes one sync call.
type SyncResult struct {
	IngestedCount int        `json:"ingested_count"`
	Cursor        *string    `json:"cursor"`
	LastSyncedAt  *time.Time `json:"last_synced_at"`
}

// SyncStateKey builds the provider identity key for a sync state row.
// Gmail uses the bare provider name. Outlook keys per mailbox address when
// one is known, so a tenant can connect several Outlook accounts.
func SyncStateKey(p Provider, address string) string {
	if p == ProviderOutlook && address != "" {
		return string(ProviderOutlook) + ":" + strings.ToLower(address)
	}
	return string(p)
}
