package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if !strings.Contains(r.URL.Path, "/botTOKEN/") {
			t.Fatalf("token missing from path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	if err := api.SendMessage(context.Background(), 42, "'Went' is the past tense of 'go'."); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got.ChatID != 42 {
		t.Fatalf("chat_id mismatch: got %d", got.ChatID)
	}
	if got.Text != "'Went' is the past tense of 'go'." {
		t.Fatalf("text mismatch: got %q", got.Text)
	}
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	err := api.SendMessage(context.Background(), 42, "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.ErrorCode != 403 {
		t.Fatalf("error_code mismatch: got %d", apiErr.ErrorCode)
	}
	if !strings.Contains(apiErr.Error(), "blocked by the user") {
		t.Fatalf("description missing from message: %q", apiErr.Error())
	}
}

func TestSendMessage_OKFalseWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	if err := api.SendMessage(context.Background(), 42, "hello"); err == nil {
		t.Fatalf("ok=false must surface as an error")
	}
}

func TestGetUpdates_AdvancesOffset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":100,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"hi"}},
			{"update_id":101,"message":{"message_id":2,"chat":{"id":7,"type":"private"},"text":"yo"}}
		]}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	updates, next, err := api.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if next != 102 {
		t.Fatalf("next offset mismatch: got %d", next)
	}
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":99,"is_bot":true,"username":"KritikaBot","first_name":"Kritika"}}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	me, err := api.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error = %v", err)
	}
	if me.Username != "KritikaBot" {
		t.Fatalf("username mismatch: got %q", me.Username)
	}
}

func TestSetWebhook(t *testing.T) {
	var got setWebhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/setWebhook") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.Client(), srv.URL, "TOKEN")
	if err := api.SetWebhook(context.Background(), "https://bot.example.com/webhook"); err != nil {
		t.Fatalf("SetWebhook() error = %v", err)
	}
	if got.URL != "https://bot.example.com/webhook" {
		t.Fatalf("url mismatch: got %q", got.URL)
	}
}

func TestIsPollTimeout(t *testing.T) {
	if !IsPollTimeout(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should count as poll timeout")
	}
	if IsPollTimeout(nil) {
		t.Fatalf("nil is not a timeout")
	}
	if IsPollTimeout(errors.New("connection refused")) {
		t.Fatalf("connection refused is a real failure")
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user *User
		want string
	}{
		{"nil", nil, ""},
		{"first and last", &User{FirstName: "Asha", LastName: "Verma"}, "Asha Verma"},
		{"first only", &User{FirstName: "Asha"}, "Asha"},
		{"username fallback", &User{Username: "asha_v"}, "@asha_v"},
		{"empty", &User{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayName(tc.user); got != tc.want {
				t.Fatalf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}
