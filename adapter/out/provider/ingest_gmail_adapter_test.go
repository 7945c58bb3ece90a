package provider

import (
	"context"
	"encoding/base64"
	"reflect"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"

	"ingest_server/core/domain"
	"ingest_server/pkg/apperr"
)

func newTestGmailAdapter() *GmailAdapter {
	return NewGmailAdapter(&GmailConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
}

func gmailBody(s string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(s))}
}

func TestGmailFetchPageRejectsForeignCursor(t *testing.T) {
	adapter := newTestGmailAdapter()

	cursor := &domain.Cursor{Provider: domain.ProviderOutlook, Value: "https://graph.example/delta"}
	_, err := adapter.FetchPage(context.Background(), domain.Credentials{AccessToken: "tok"}, nil, cursor)
	if err == nil {
		t.Fatal("expected error for outlook-tagged cursor")
	}
	if !apperr.IsCode(err, apperr.CodeConfigError) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestGmailConvertMessageHeaders(t *testing.T) {
	adapter := newTestGmailAdapter()

	msg := &gmail.Message{
		Id:           "msg-1",
		ThreadId:     "thread-1",
		InternalDate: 1718452800000, // 2024-06-15T12:00:00Z
		LabelIds:     []string{"INBOX", "IMPORTANT"},
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "quarterly report"},
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "bob@example.com, Carol <carol@example.com>"},
				{Name: "Cc", Value: "dave@example.com"},
				{Name: "Date", Value: "Sat, 15 Jun 2024 11:00:00 +0000"},
			},
			Body: gmailBody("hello world"),
		},
	}

	item := adapter.convertMessage(msg)

	if item.ExternalID != "msg-1" || item.ThreadID != "thread-1" {
		t.Errorf("unexpected ids: %q / %q", item.ExternalID, item.ThreadID)
	}
	if item.Subject != "quarterly report" {
		t.Errorf("unexpected subject %q", item.Subject)
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
	if item.Body != "hello world" {
		t.Errorf("unexpected body %q", item.Body)
	}
	// internalDate wins over the Date header.
	if want := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC); !item.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", item.Timestamp, want)
	}
	if item.ImportanceScore != 1.0 {
		t.Errorf("importance = %v, want 1.0", item.ImportanceScore)
	}
	if item.IsPromotion {
		t.Error("expected IsPromotion false without CATEGORY_PROMOTIONS")
	}
}

func TestGmailConvertMessageTimestampFallbacks(t *testing.T) {
	adapter := newTestGmailAdapter()

	t.Run("date header when internalDate missing", func(t *testing.T) {
		msg := &gmail.Message{
			Id: "msg-2",
			Payload: &gmail.MessagePart{
				Headers: []*gmail.MessagePartHeader{
					{Name: "Date", Value: "Sat, 15 Jun 2024 11:00:00 +0000"},
				},
			},
		}
		item := adapter.convertMessage(msg)
		if want := time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC); !item.Timestamp.Equal(want) {
			t.Errorf("timestamp = %v, want %v", item.Timestamp, want)
		}
	})

	t.Run("zero timestamp when nothing parseable", func(t *testing.T) {
		msg := &gmail.Message{
			Id: "msg-3",
			Payload: &gmail.MessagePart{
				Headers: []*gmail.MessagePartHeader{
					{Name: "Date", Value: "not a date"},
				},
			},
		}
		item := adapter.convertMessage(msg)
		if !item.Timestamp.IsZero() {
			t.Errorf("expected zero timestamp, got %v", item.Timestamp)
		}
	})
}

func TestGmailConvertMessagePromotionLabel(t *testing.T) {
	adapter := newTestGmailAdapter()

	msg := &gmail.Message{
		Id:       "msg-4",
		LabelIds: []string{"CATEGORY_PROMOTIONS"},
	}
	item := adapter.convertMessage(msg)
	if !item.IsPromotion {
		t.Error("expected IsPromotion true for CATEGORY_PROMOTIONS")
	}
	if item.ImportanceScore != 0 {
		t.Errorf("importance = %v, want 0", item.ImportanceScore)
	}
}

func TestGmailExtractBodyPrecedence(t *testing.T) {
	adapter := newTestGmailAdapter()

	t.Run("plain part wins over html", func(t *testing.T) {
		msg := &gmail.Message{
			Id:      "msg-5",
			Snippet: "snippet text",
			Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: gmailBody("<p>html body</p>")},
					{MimeType: "text/plain", Body: gmailBody("plain body")},
				},
			},
		}
		if got := adapter.extractBodyText(msg); got != "plain body" {
			t.Errorf("body = %q, want plain part", got)
		}
	})

	t.Run("html stripped when no plain part", func(t *testing.T) {
		msg := &gmail.Message{
			Id:      "msg-6",
			Snippet: "snippet text",
			Payload: &gmail.MessagePart{
				MimeType: "text/html",
				Body:     gmailBody("<p>html only</p>"),
			},
		}
		if got := adapter.extractBodyText(msg); got != "html only" {
			t.Errorf("body = %q, want stripped html", got)
		}
	})

	t.Run("snippet fallback", func(t *testing.T) {
		msg := &gmail.Message{Id: "msg-7", Snippet: "snippet text"}
		if got := adapter.extractBodyText(msg); got != "snippet text" {
			t.Errorf("body = %q, want snippet", got)
		}
	})

	t.Run("nested multipart plain found", func(t *testing.T) {
		msg := &gmail.Message{
			Id: "msg-8",
			Payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: gmailBody("nested plain")},
						},
					},
				},
			},
		}
		if got := adapter.extractBodyText(msg); got != "nested plain" {
			t.Errorf("body = %q, want nested plain part", got)
		}
	})
}

func TestLatestTimestamp(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	items := []domain.IngestItem{
		{ExternalID: "a", Timestamp: t1},
		{ExternalID: "b", Timestamp: t2},
		{ExternalID: "c"},
	}
	got := latestTimestamp(items)
	if got == nil || !got.Equal(t2) {
		t.Errorf("latestTimestamp = %v, want %v", got, t2)
	}

	if got := latestTimestamp(nil); got != nil {
		t.Errorf("expected nil for empty slice, got %v", got)
	}
	if got := latestTimestamp([]domain.IngestItem{{ExternalID: "x"}}); got != nil {
		t.Errorf("expected nil for all-zero timestamps, got %v", got)
	}
}
