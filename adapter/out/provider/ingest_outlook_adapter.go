package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/httputil"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

const outlookDefaultPageSize = 50

const graphSelectFields = "id,conversationId,subject,bodyPreview,body,from,toRecipients,ccRecipients,bccRecipients,importance,categories,receivedDateTime"

// =============================================================================
// Outlook Adapter
// =============================================================================

// OutlookAdapter implements out.MailProvider for Microsoft Outlook via the
// Graph API.
type OutlookAdapter struct {
	config   *oauth2.Config
	pageSize int
	baseURL  string
}

// OutlookConfig holds Microsoft OAuth app configuration.
type OutlookConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	PageSize     int
}

// NewOutlookAdapter creates a new Outlook adapter.
func NewOutlookAdapter(cfg *OutlookConfig) *OutlookAdapter {
	tenantID := cfg.TenantID
	if tenantID == "" {
		tenantID = "common"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			"https://graph.microsoft.com/Mail.Read",
			"offline_access",
		},
		Endpoint: microsoft.AzureADEndpoint(tenantID),
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = outlookDefaultPageSize
	}

	return &OutlookAdapter{
		config:   config,
		pageSize: pageSize,
		baseURL:  graphBaseURL,
	}
}

var _ out.MailProvider = (*OutlookAdapter)(nil)

// Provider returns the provider tag.
func (a *OutlookAdapter) Provider() domain.Provider {
	return domain.ProviderOutlook
}

// FetchPage drains one fully-followed page of messages. With a cursor it
// replays the delta feed behind the stored deltaLink; without one it lists
// messages floored at since and captures a fresh deltaLink.
func (a *OutlookAdapter) FetchPage(ctx context.Context, creds domain.Credentials, since *time.Time, cursor *domain.Cursor) (*out.ProviderPage, error) {
	if cursor != nil && cursor.Provider != domain.ProviderOutlook {
		return nil, apperr.ConfigError(
			fmt.Sprintf("cursor tagged %q cannot drive an outlook fetch", cursor.Provider))
	}

	client := a.httpClient(ctx, creds)

	if cursor != nil {
		return a.fetchByDelta(ctx, client, cursor.Value)
	}
	return a.fetchByFilter(ctx, client, since)
}

// fetchByFilter lists messages newer than since and then fetches a
// deltaLink so the next run can read the delta feed instead.
func (a *OutlookAdapter) fetchByFilter(ctx context.Context, client *http.Client, since *time.Time) (*out.ProviderPage, error) {
	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", a.pageSize))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", graphSelectFields)
	if since != nil {
		params.Set("$filter", fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339)))
	}

	var items []domain.IngestItem
	nextLink := a.baseURL + "/me/messages?" + params.Encode()

	for nextLink != "" {
		var resp struct {
			Value    []graphMessage `json:"value"`
			NextLink string         `json:"@odata.nextLink"`
		}

		if err := a.doGet(ctx, client, nextLink, &resp); err != nil {
			return nil, err
		}

		for i := range resp.Value {
			items = append(items, a.convertMessage(&resp.Value[i]))
		}
		nextLink = resp.NextLink
	}

	deltaLink, err := a.getDeltaLink(ctx, client)
	if err != nil {
		return nil, err
	}

	return &out.ProviderPage{
		Items:           items,
		NextCursor:      &domain.Cursor{Provider: domain.ProviderOutlook, Value: deltaLink},
		LatestTimestamp: latestTimestamp(items),
	}, nil
}

// fetchByDelta replays the delta feed from a stored deltaLink. Graph
// answers 410 or a resyncRequired body when the link has expired; that
// demands a fresh bootstrap, surfaced as a sync-required error.
func (a *OutlookAdapter) fetchByDelta(ctx context.Context, client *http.Client, deltaLink string) (*out.ProviderPage, error) {
	var items []domain.IngestItem
	var newDeltaLink string

	nextLink := deltaLink
	if !strings.HasPrefix(nextLink, "http") {
		return nil, apperr.ConfigError(fmt.Sprintf("malformed outlook delta cursor %q", deltaLink))
	}

	for nextLink != "" {
		var resp struct {
			Value     []graphMessage `json:"value"`
			NextLink  string         `json:"@odata.nextLink"`
			DeltaLink string         `json:"@odata.deltaLink"`
		}

		if err := a.doGet(ctx, client, nextLink, &resp); err != nil {
			if apperr.IsCode(err, apperr.CodeSyncRequired) || strings.Contains(err.Error(), "resyncRequired") {
				return nil, apperr.SyncRequired("outlook", err)
			}
			return nil, err
		}

		for i := range resp.Value {
			// Deletions and moves show up as @removed entries.
			if resp.Value[i].Removed != nil {
				continue
			}
			items = append(items, a.convertMessage(&resp.Value[i]))
		}

		if resp.DeltaLink != "" {
			newDeltaLink = resp.DeltaLink
			break
		}
		nextLink = resp.NextLink
	}

	page := &out.ProviderPage{
		Items:           items,
		LatestTimestamp: latestTimestamp(items),
	}
	if newDeltaLink != "" {
		page.NextCursor = &domain.Cursor{Provider: domain.ProviderOutlook, Value: newDeltaLink}
	}
	return page, nil
}

func (a *OutlookAdapter) getDeltaLink(ctx context.Context, client *http.Client) (string, error) {
	nextLink := fmt.Sprintf("%s/me/messages/delta?$top=%d&$select=id", a.baseURL, a.pageSize)

	// The delta feed has to be walked to its end before Graph hands out a
	// deltaLink. Full pages keep the walk at one round-trip per page.
	for nextLink != "" {
		var resp struct {
			NextLink  string `json:"@odata.nextLink"`
			DeltaLink string `json:"@odata.deltaLink"`
		}

		if err := a.doGet(ctx, client, nextLink, &resp); err != nil {
			return "", err
		}
		if resp.DeltaLink != "" {
			return resp.DeltaLink, nil
		}
		nextLink = resp.NextLink
	}

	return "", apperr.ProviderError("outlook", "delta feed ended without a deltaLink", nil)
}

// =============================================================================
// Normalization
// =============================================================================

// convertMessage maps a Graph message into the ingest shape.
func (a *OutlookAdapter) convertMessage(msg *graphMessage) domain.IngestItem {
	item := domain.IngestItem{
		ExternalID: msg.ID,
		ThreadID:   msg.ConversationID,
		Subject:    msg.Subject,
		Sender:     msg.From.EmailAddress.Address,
		Recipients: recipientAddresses(msg.ToRecipients),
		CC:         recipientAddresses(msg.CcRecipients),
		BCC:        recipientAddresses(msg.BccRecipients),
		Labels:     msg.Categories,
	}

	switch msg.Body.ContentType {
	case "html":
		item.Body = stripHTML(msg.Body.Content)
	default:
		item.Body = msg.Body.Content
	}
	if item.Body == "" {
		item.Body = msg.BodyPreview
	}

	if msg.ReceivedDateTime != "" {
		if t, err := time.Parse(time.RFC3339, msg.ReceivedDateTime); err == nil {
			item.Timestamp = t.UTC()
		}
	}

	if strings.EqualFold(msg.Importance, "high") {
		item.ImportanceScore = 1.0
	}

	return item
}

func recipientAddresses(recipients []graphRecipient) []string {
	if len(recipients) == 0 {
		return nil
	}
	addrs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.EmailAddress.Address != "" {
			addrs = append(addrs, r.EmailAddress.Address)
		}
	}
	if len(addrs) == 0 {
		return nil
	}
	return addrs
}

// =============================================================================
// Graph wire types
// =============================================================================

type graphMessage struct {
	ID               string            `json:"id"`
	ConversationID   string            `json:"conversationId"`
	Subject          string            `json:"subject"`
	BodyPreview      string            `json:"bodyPreview"`
	Body             graphBody         `json:"body"`
	From             graphRecipient    `json:"from"`
	ToRecipients     []graphRecipient  `json:"toRecipients"`
	CcRecipients     []graphRecipient  `json:"ccRecipients"`
	BccRecipients    []graphRecipient  `json:"bccRecipients"`
	Importance       string            `json:"importance"`
	Categories       []string          `json:"categories"`
	ReceivedDateTime string            `json:"receivedDateTime"`
	Removed          *graphRemovedInfo `json:"@removed,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphRemovedInfo struct {
	Reason string `json:"reason"`
}

// =============================================================================
// Plumbing
// =============================================================================

func (a *OutlookAdapter) httpClient(ctx context.Context, creds domain.Credentials) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.OutlookClient())

	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	return a.config.Client(ctx, token)
}

func (a *OutlookAdapter) doGet(ctx context.Context, client *http.Client, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return a.wrapError(err, "failed to build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return a.wrapError(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return a.wrapHTTPError(resp.StatusCode, string(body))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (a *OutlookAdapter) wrapHTTPError(statusCode int, body string) error {
	switch statusCode {
	case 401:
		return apperr.ProviderError("outlook", "token expired or revoked", nil)
	case 403:
		return apperr.ProviderError("outlook", "access denied", nil)
	case 404:
		return apperr.ProviderError("outlook", "resource not found", nil)
	case 429:
		return apperr.ProviderError("outlook", "too many requests", nil)
	case 410:
		return apperr.SyncRequired("outlook", nil)
	default:
		if strings.Contains(body, "resyncRequired") {
			return apperr.SyncRequired("outlook", nil)
		}
		return apperr.ProviderError("outlook", fmt.Sprintf("HTTP %d: %s", statusCode, body), nil)
	}
}

func (a *OutlookAdapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}
	return apperr.ProviderError("outlook", defaultMsg, err)
}
