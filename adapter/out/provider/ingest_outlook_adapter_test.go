package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"ingest_server/core/domain"
	"ingest_server/pkg/apperr"
)

func newTestOutlookAdapter() *OutlookAdapter {
	return NewOutlookAdapter(&OutlookConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
}

func TestOutlookFetchPageRejectsForeignCursor(t *testing.T) {
	adapter := newTestOutlookAdapter()

	cursor := &domain.Cursor{Provider: domain.ProviderGmail, Value: "12345"}
	_, err := adapter.FetchPage(context.Background(), domain.Credentials{AccessToken: "tok"}, nil, cursor)
	if err == nil {
		t.Fatal("expected error for gmail-tagged cursor")
	}
	if !apperr.IsCode(err, apperr.CodeConfigError) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestOutlookFetchPageRejectsMalformedDeltaCursor(t *testing.T) {
	adapter := newTestOutlookAdapter()

	cursor := &domain.Cursor{Provider: domain.ProviderOutlook, Value: "not-a-link"}
	_, err := adapter.FetchPage(context.Background(), domain.Credentials{AccessToken: "tok"}, nil, cursor)
	if err == nil {
		t.Fatal("expected error for malformed delta cursor")
	}
	if !apperr.IsCode(err, apperr.CodeConfigError) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestOutlookConvertMessage(t *testing.T) {
	adapter := newTestOutlookAdapter()

	msg := &graphMessage{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Subject:        "quarterly report",
		BodyPreview:    "preview text",
		Body:           graphBody{ContentType: "html", Content: "<p>html body</p>"},
		From:           graphRecipient{EmailAddress: graphEmailAddress{Name: "Alice", Address: "alice@example.com"}},
		ToRecipients: []graphRecipient{
			{EmailAddress: graphEmailAddress{Address: "bob@example.com"}},
			{EmailAddress: graphEmailAddress{Address: "carol@example.com"}},
		},
		CcRecipients:     []graphRecipient{{EmailAddress: graphEmailAddress{Address: "dave@example.com"}}},
		Importance:       "high",
		Categories:       []string{"Red category"},
		ReceivedDateTime: "2024-06-15T12:00:00Z",
	}

	item := adapter.convertMessage(msg)

	if item.ExternalID != "msg-1" || item.ThreadID != "conv-1" {
		t.Errorf("unexpected ids: %q / %q", item.ExternalID, item.ThreadID)
	}
	if item.Sender != "alice@example.com" {
		t.Errorf("unexpected sender %q", item.Sender)
	}
	if want := []string{"bob@example.com", "carol@example.com"}; !reflect.DeepEqual(item.Recipients, want) {
		t.Errorf("unexpected recipients %v", item.Recipients)
	}
	if want := []string{"dave@example.com"}; !reflect.DeepEqual(item.CC, want) {
		t.Errorf("unexpected cc %v", item.CC)
	}
	if item.Body != "html body" {
		t.Errorf("body = %q, want stripped html", item.Body)
	}
	if want := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC); !item.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", item.Timestamp, want)
	}
	if item.ImportanceScore != 1.0 {
		t.Errorf("importance = %v, want 1.0 for high importance", item.ImportanceScore)
	}
	if item.IsPromotion {
		t.Error("outlook messages never carry a promotion flag")
	}
	if want := []string{"Red category"}; !reflect.DeepEqual(item.Labels, want) {
		t.Errorf("unexpected labels %v", item.Labels)
	}
}

func TestOutlookConvertMessageBodyFallbacks(t *testing.T) {
	adapter := newTestOutlookAdapter()

	t.Run("text body kept verbatim", func(t *testing.T) {
		msg := &graphMessage{ID: "m", Body: graphBody{ContentType: "text", Content: "plain body"}}
		if got := adapter.convertMessage(msg).Body; got != "plain body" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("preview when body empty", func(t *testing.T) {
		msg := &graphMessage{ID: "m", BodyPreview: "preview only"}
		if got := adapter.convertMessage(msg).Body; got != "preview only" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("normal importance scores zero", func(t *testing.T) {
		msg := &graphMessage{ID: "m", Importance: "normal"}
		if got := adapter.convertMessage(msg).ImportanceScore; got != 0 {
			t.Errorf("importance = %v, want 0", got)
		}
	})

	t.Run("unparseable receivedDateTime leaves zero timestamp", func(t *testing.T) {
		msg := &graphMessage{ID: "m", ReceivedDateTime: "garbage"}
		if got := adapter.convertMessage(msg).Timestamp; !got.IsZero() {
			t.Errorf("timestamp = %v, want zero", got)
		}
	})
}

func TestOutlookDeltaLinkBaselineUsesPageSize(t *testing.T) {
	wantDelta := "https://graph.example/me/messages/delta?$deltatoken=abc"
	var gotTops []string

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/me/messages/delta", func(w http.ResponseWriter, r *http.Request) {
		gotTops = append(gotTops, r.URL.Query().Get("$top"))
		fmt.Fprintf(w, `{"@odata.nextLink": %q}`, srv.URL+"/page2")
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"@odata.deltaLink": %q}`, wantDelta)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	adapter := newTestOutlookAdapter()
	adapter.baseURL = srv.URL

	link, err := adapter.getDeltaLink(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("getDeltaLink() error = %v", err)
	}
	if link != wantDelta {
		t.Errorf("deltaLink = %q, want %q", link, wantDelta)
	}
	// The baseline walk requests full pages, not single messages.
	if len(gotTops) != 1 || gotTops[0] != "50" {
		t.Errorf("$top per request = %v, want one request with page size 50", gotTops)
	}
}

func TestRecipientAddresses(t *testing.T) {
	recipients := []graphRecipient{
		{EmailAddress: graphEmailAddress{Address: "a@example.com"}},
		{EmailAddress: graphEmailAddress{Name: "no address"}},
		{EmailAddress: graphEmailAddress{Address: "b@example.com"}},
	}
	if got, want := recipientAddresses(recipients), []string{"a@example.com", "b@example.com"}; !reflect.DeepEqual(got, want) {
		t.Errorf("recipientAddresses = %v, want %v", got, want)
	}
	if got := recipientAddresses(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
