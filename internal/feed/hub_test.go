package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastsToSpectators(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration races the publish; wait for the client to appear.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Spectators() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("spectator never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sent := NewEvent(TypePoolMatched, "match1")
	sent.Winners = []string{"alice"}
	sent.Pot = 200
	hub.Publish(sent)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != sent.ID || got.Type != TypePoolMatched || got.Pot != 200 {
		t.Fatalf("event mismatch: %+v", got)
	}
}

func TestMultiFansOut(t *testing.T) {
	a := &Capture{}
	b := &Capture{}
	Multi{a, b}.Publish(NewEvent(TypeRefund, "r1"))
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatalf("fan-out missed a sink: %d, %d", len(a.Events), len(b.Events))
	}
}
