package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/solo/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL+"/", "launches")
	event := history.Event{
		Type:       history.EventTerminated,
		OccurredAt: time.Now().UTC(),
		PID:        12345,
		Name:       "solo",
		Detail:     "forced",
	}
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if receivedMethod != http.MethodPost {
		t.Errorf("Expected POST method, got: %s", receivedMethod)
	}
	if receivedURL != "/launches/_doc" {
		t.Errorf("Expected URL path /launches/_doc, got: %s", receivedURL)
	}

	var got map[string]any
	if err := json.Unmarshal(receivedBody, &got); err != nil {
		t.Fatalf("Failed to unmarshal request body: %v", err)
	}
	if got["type"] != "terminated" || got["name"] != "solo" || got["detail"] != "forced" {
		t.Errorf("Unexpected body: %v", got)
	}
	if pid, _ := got["pid"].(float64); int(pid) != 12345 {
		t.Errorf("Expected pid 12345, got %v", got["pid"])
	}
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := New(server.URL, "launches")
	if err := sink.Send(context.Background(), history.Event{Type: history.EventClaimed}); err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestOpenSearchSink_Unreachable(t *testing.T) {
	sink := New("http://127.0.0.1:1", "launches")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sink.Send(ctx, history.Event{Type: history.EventClaimed}); err == nil {
		t.Fatal("Expected connection error")
	}
}
