package correlation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestFromRequest_AllowListOnly(t *testing.T) {
	req := httptest.NewRequest("POST", "/purchase", nil)
	req.Header.Set(HeaderRequestID, " req-1 ")
	req.Header.Set(HeaderOriginHost, "host-a")
	req.Header.Set(HeaderOriginUser, "alice")
	req.Header.Set("X-Secret-Payload", "should-not-propagate")

	keys := FromRequest(req)
	if keys.RequestID != "req-1" {
		t.Fatalf("unexpected request id: %q", keys.RequestID)
	}
	if keys.OriginHost != "host-a" || keys.OriginUser != "alice" {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}

func TestContextRoundTrip(t *testing.T) {
	keys := Keys{RequestID: "req-2", OriginHost: "h", OriginUser: "u"}
	ctx := NewContext(context.Background(), keys)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected keys in context")
	}
	if got != keys {
		t.Fatalf("expected %+v, got %+v", keys, got)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected no keys in empty context")
	}
}

func TestLogHandler_AddsCorrelationAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLogHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := NewContext(context.Background(), Keys{RequestID: "req-3", OriginUser: "bob"})
	logger.InfoContext(ctx, "step done")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["request_id"] != "req-3" {
		t.Fatalf("expected request_id attr, got %v", record)
	}
	if record["origin_user"] != "bob" {
		t.Fatalf("expected origin_user attr, got %v", record)
	}
	if _, ok := record["origin_host"]; ok {
		t.Fatalf("empty origin_host should not be logged: %v", record)
	}
}
