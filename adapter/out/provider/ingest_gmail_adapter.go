package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/mail"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/httputil"
)

// =============================================================================
// Gmail Adapter
// =============================================================================

const (
	gmailDefaultPageSize = 100
	gmailMaxConcurrency  = 10
	gmailPerMessageTime  = 15 * time.Second
)

// GmailAdapter implements out.MailProvider for Gmail.
type GmailAdapter struct {
	config   *oauth2.Config
	pageSize int64
	cb       *gobreaker.CircuitBreaker
}

// GmailConfig holds Gmail OAuth app configuration.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	PageSize     int
}

// NewGmailAdapter creates a new Gmail adapter.
func NewGmailAdapter(cfg *GmailConfig) *GmailAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	pageSize := int64(cfg.PageSize)
	if pageSize <= 0 {
		pageSize = gmailDefaultPageSize
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		config:   config,
		pageSize: pageSize,
		cb:       gobreaker.NewCircuitBreaker(cbSettings),
	}
}

var _ out.MailProvider = (*GmailAdapter)(nil)

// Provider returns the provider tag.
func (a *GmailAdapter) Provider() domain.Provider {
	return domain.ProviderGmail
}

// FetchPage drains one fully-followed page of messages. With a cursor it
// reads the history feed from the stored historyId; without one it lists
// messages floored at since.
func (a *GmailAdapter) FetchPage(ctx context.Context, creds domain.Credentials, since *time.Time, cursor *domain.Cursor) (*out.ProviderPage, error) {
	if cursor != nil && cursor.Provider != domain.ProviderGmail {
		return nil, apperr.ConfigError(
			fmt.Sprintf("cursor tagged %q cannot drive a gmail fetch", cursor.Provider))
	}

	svc, err := a.getService(ctx, creds)
	if err != nil {
		return nil, a.wrapError(err, "failed to build gmail client")
	}

	if cursor != nil {
		return a.fetchByHistory(ctx, svc, cursor.Value)
	}
	return a.fetchByQuery(ctx, svc, since)
}

// fetchByQuery lists message ids (optionally floored by an after: query),
// fetches each in full, and captures the mailbox's live historyId as the
// next cursor.
func (a *GmailAdapter) fetchByQuery(ctx context.Context, svc *gmail.Service, since *time.Time) (*out.ProviderPage, error) {
	var msgRefs []*gmail.Message
	pageToken := ""

	for {
		req := svc.Users.Messages.List("me").MaxResults(a.pageSize)
		if since != nil {
			req = req.Q(fmt.Sprintf("after:%s", since.Format("2006/01/02")))
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		cbErr := a.executeWithCircuitBreaker(ctx, "ListMessages", func() error {
			var apiErr error
			resp, apiErr = req.Context(ctx).Do()
			return apiErr
		})
		if cbErr != nil {
			return nil, a.wrapError(cbErr, "failed to list messages")
		}

		msgRefs = append(msgRefs, resp.Messages...)
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	items, err := a.fetchMessagesFull(ctx, svc, msgRefs)
	if err != nil {
		return nil, err
	}

	// The profile's historyId is the live position; history reads from here
	// cover everything after this listing.
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, a.wrapError(err, "failed to get profile")
	}

	return &out.ProviderPage{
		Items:           items,
		NextCursor:      &domain.Cursor{Provider: domain.ProviderGmail, Value: strconv.FormatUint(profile.HistoryId, 10)},
		LatestTimestamp: latestTimestamp(items),
	}, nil
}

// fetchByHistory drains the history feed from the stored historyId. Gmail
// answers 404 when the id has aged out of the feed; that demands a fresh
// bootstrap, surfaced as a sync-required error.
func (a *GmailAdapter) fetchByHistory(ctx context.Context, svc *gmail.Service, historyCursor string) (*out.ProviderPage, error) {
	startID, err := strconv.ParseUint(historyCursor, 10, 64)
	if err != nil {
		return nil, apperr.ConfigError(fmt.Sprintf("malformed gmail history cursor %q", historyCursor))
	}

	var msgRefs []*gmail.Message
	seenIDs := make(map[string]bool)
	var latestHistoryID uint64
	pageToken := ""

	for {
		req := svc.Users.History.List("me").StartHistoryId(startID)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var resp *gmail.ListHistoryResponse
		cbErr := a.executeWithCircuitBreaker(ctx, "ListHistory", func() error {
			var apiErr error
			resp, apiErr = req.Context(ctx).Do()
			return apiErr
		})
		if cbErr != nil {
			if apiErr, ok := cbErr.(*googleapi.Error); ok && apiErr.Code == 404 {
				return nil, apperr.SyncRequired("gmail", cbErr)
			}
			return nil, a.wrapError(cbErr, "failed to list history")
		}

		for _, history := range resp.History {
			for _, added := range history.MessagesAdded {
				if added.Message == nil || seenIDs[added.Message.Id] {
					continue
				}
				seenIDs[added.Message.Id] = true
				msgRefs = append(msgRefs, added.Message)
			}
		}
		if resp.HistoryId > latestHistoryID {
			latestHistoryID = resp.HistoryId
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	items, err := a.fetchMessagesFull(ctx, svc, msgRefs)
	if err != nil {
		return nil, err
	}

	page := &out.ProviderPage{
		Items:           items,
		LatestTimestamp: latestTimestamp(items),
	}
	if latestHistoryID > 0 {
		page.NextCursor = &domain.Cursor{Provider: domain.ProviderGmail, Value: strconv.FormatUint(latestHistoryID, 10)}
	}
	return page, nil
}

// fetchMessagesFull fetches full message payloads in parallel. Any single
// failure fails the whole page so no partial page is ever reported as
// success.
func (a *GmailAdapter) fetchMessagesFull(ctx context.Context, svc *gmail.Service, msgRefs []*gmail.Message) ([]domain.IngestItem, error) {
	if len(msgRefs) == 0 {
		return nil, nil
	}

	type result struct {
		index int
		item  domain.IngestItem
		err   error
	}

	results := make(chan result, len(msgRefs))
	sem := make(chan struct{}, gmailMaxConcurrency)

	for i, msgRef := range msgRefs {
		go func(idx int, id string) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{index: idx, err: ctx.Err()}
				return
			}

			msgCtx, cancel := context.WithTimeout(ctx, gmailPerMessageTime)
			defer cancel()

			msg, err := svc.Users.Messages.Get("me", id).Format("full").Context(msgCtx).Do()
			if err != nil {
				results <- result{index: idx, err: err}
				return
			}
			results <- result{index: idx, item: a.convertMessage(msg)}
		}(i, msgRef.Id)
	}

	items := make([]domain.IngestItem, len(msgRefs))
	var firstErr error
	for collected := 0; collected < len(msgRefs); collected++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		items[r.index] = r.item
	}
	if firstErr != nil {
		return nil, a.wrapError(firstErr, "failed to fetch message")
	}
	return items, nil
}

// =============================================================================
// Normalization
// =============================================================================

// convertMessage maps a full-format Gmail message into the ingest shape.
func (a *GmailAdapter) convertMessage(msg *gmail.Message) domain.IngestItem {
	item := domain.IngestItem{
		ExternalID: msg.Id,
		ThreadID:   msg.ThreadId,
		Labels:     msg.LabelIds,
	}

	var headerDate time.Time
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				item.Subject = h.Value
			case "From":
				item.Sender = extractAddress(h.Value)
			case "To":
				item.Recipients = splitAddressList(h.Value)
			case "Cc":
				item.CC = splitAddressList(h.Value)
			case "Bcc":
				item.BCC = splitAddressList(h.Value)
			case "Date":
				if t, err := mail.ParseDate(h.Value); err == nil {
					headerDate = t
				}
			}
		}
	}

	// internalDate is authoritative; the Date header covers messages where
	// it is missing, and a zero value falls back to ingestion time later.
	if msg.InternalDate > 0 {
		item.Timestamp = time.Unix(0, msg.InternalDate*int64(time.Millisecond)).UTC()
	} else if !headerDate.IsZero() {
		item.Timestamp = headerDate.UTC()
	}

	item.Body = a.extractBodyText(msg)

	for _, label := range msg.LabelIds {
		switch label {
		case "IMPORTANT":
			item.ImportanceScore = 1.0
		case "CATEGORY_PROMOTIONS":
			item.IsPromotion = true
		}
	}

	return item
}

// extractBodyText prefers the text/plain part, then stripped HTML, then the
// snippet.
func (a *GmailAdapter) extractBodyText(msg *gmail.Message) string {
	var plain, htmlBody string
	a.walkParts(msg.Payload, &plain, &htmlBody, 0)

	if plain != "" {
		return plain
	}
	if htmlBody != "" {
		return stripHTML(htmlBody)
	}
	return msg.Snippet
}

func (a *GmailAdapter) walkParts(part *gmail.MessagePart, plain, htmlBody *string, depth int) {
	if part == nil || depth > 10 {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			switch part.MimeType {
			case "text/plain":
				if *plain == "" {
					*plain = string(data)
				}
			case "text/html":
				if *htmlBody == "" {
					*htmlBody = string(data)
				}
			}
		}
	}

	for _, p := range part.Parts {
		a.walkParts(p, plain, htmlBody, depth+1)
	}
}

func latestTimestamp(items []domain.IngestItem) *time.Time {
	var latest time.Time
	for _, it := range items {
		if it.Timestamp.After(latest) {
			latest = it.Timestamp
		}
	}
	if latest.IsZero() {
		return nil
	}
	return &latest
}

// =============================================================================
// Plumbing
// =============================================================================

func (a *GmailAdapter) getService(ctx context.Context, creds domain.Credentials) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	// The tuned shared client becomes the base transport under the oauth2
	// token source.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.GmailClient())

	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	return gmail.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, token),
	))
}

// executeWithCircuitBreaker wraps an API call with circuit breaker
// protection. Client-side 4xx responses are kept out of the failure counts
// so a bad request cannot open the breaker.
func (a *GmailAdapter) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		log.Printf("[GmailAdapter] Circuit breaker error for %s: state=%s, err=%v",
			operation, a.cb.State().String(), err)
	}

	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func (a *GmailAdapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return apperr.ProviderError("gmail", "token expired or revoked", err)
		case 403:
			return apperr.ProviderError("gmail", "access denied or rate limited", err)
		case 404:
			return apperr.ProviderError("gmail", "resource not found", err)
		case 429:
			return apperr.ProviderError("gmail", "too many requests", err)
		case 500, 502, 503:
			return apperr.ProviderError("gmail", "gmail server error", err)
		}
	}

	return apperr.ProviderError("gmail", defaultMsg, err)
}
