package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["chat_id"] != "42" {
			t.Errorf("unexpected chat id %v", body["chat_id"])
		}
		texts = append(texts, body["text"].(string))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("TOKEN", "42")
	n.apiBase = server.URL
	n.client = server.Client()

	if err := n.PublishDigest(context.Background(), "EU REACH SVHC: 1 new update"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(texts) != 1 || texts[0] != "EU REACH SVHC: 1 new update" {
		t.Fatalf("unexpected texts: %v", texts)
	}
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").PublishDigest(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("a", 30)
	text := strings.Join([]string{line, line, line}, "\n")

	parts := splitMessage(text, 70)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), parts)
	}
	for _, p := range parts {
		if len(p) > 70 {
			t.Fatalf("part too long: %d", len(p))
		}
	}

	if got := splitMessage(strings.Repeat("b", 150), 70); len(got) != 3 {
		t.Fatalf("expected hard split into 3 parts, got %d", len(got))
	}
}
