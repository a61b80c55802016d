package eventbus

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/liveink/liveink/internal/events"
)

func TestBus_PublishDeliversToConnectedClient(t *testing.T) {
	bus := New()
	defer bus.Close()

	srv := httptest.NewServer(bus.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the server a moment to register the client before publishing.
	time.Sleep(20 * time.Millisecond)

	bus.Publish(events.DocumentUpdate{Content: "hello", Version: 1})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Type != "document-update" {
		t.Errorf("Type = %q, want document-update", env.Type)
	}
}

func TestBus_PublishWithNoClientsDoesNotBlock(t *testing.T) {
	bus := New()
	defer bus.Close()
	bus.Publish(events.RecordingsUpdated{})
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := New()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	bus.Publish(events.RecordingsUpdated{})
}

func TestEventType_CoversAllVariants(t *testing.T) {
	cases := []events.Event{
		events.DocumentUpdate{},
		events.TranscriptUpdate{},
		events.TodoUpdate{},
		events.AgentStatus{},
		events.MicVolume{},
		events.ShowToast{},
		events.RecordingStarted{},
		events.RecordingRenamed{},
		events.RecordingsUpdated{},
		events.SearchResults{},
	}
	for _, c := range cases {
		if got := eventType(c); got == "unknown" {
			t.Errorf("eventType(%T) = unknown, want a specific tag", c)
		}
	}
}
