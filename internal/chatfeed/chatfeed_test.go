package chatfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func strPtr(s string) *string { return &s }

func TestToVoteEventMapsRoles(t *testing.T) {
	ev, ok := ToVoteEvent(&Message{
		Room:     "#streamer",
		Msg:      "!vote e4",
		Sender:   strPtr("Alice"),
		SenderID: "1234",
		Badges:   []string{"subscriber", "moderator"},
		Follower: true,
	})
	if !ok {
		t.Fatalf("expected a vote candidate")
	}
	if ev.Voter.ID != "Alice" || ev.SourceChannel != "streamer" || ev.RawText != "!vote e4" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	r := ev.Voter.Roles
	if !r.IsSubscriber || !r.IsModerator || !r.IsFollower || r.IsVIP || r.IsChannelOwner {
		t.Fatalf("unexpected roles: %+v", r)
	}
	if r.NumericID == nil || *r.NumericID != 1234 {
		t.Fatalf("numeric id not parsed: %v", r.NumericID)
	}

	ev, _ = ToVoteEvent(&Message{Room: "streamer", Msg: "d4", SenderID: "bob", Badges: []string{"broadcaster"}})
	if ev.Voter.ID != "bob" || !ev.Voter.Roles.IsChannelOwner || ev.Voter.Roles.NumericID != nil {
		t.Fatalf("broadcaster mapping: %+v", ev)
	}
}

func TestToVoteEventSkipsNonChat(t *testing.T) {
	for _, m := range []*Message{
		nil,
		{Type: "join", Room: "r", Msg: "x", Sender: strPtr("a")},
		{Room: "r", Msg: "  ", Sender: strPtr("a")},
		{Room: "r", Msg: "e4"},
	} {
		if _, ok := ToVoteEvent(m); ok {
			t.Fatalf("expected skip for %+v", m)
		}
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	var got ReplyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reply" || r.Header.Get("X-Api-Key") != "k" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHeaderProvider(func() map[string]string { return map[string]string{"X-Api-Key": "k"} }))
	if err := c.SendMessage(context.Background(), "streamer", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 || got.Data != "hello" || got.Room != "streamer" {
		t.Fatalf("calls=%d body=%+v", calls, got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SendMessage(context.Background(), "r", "x")
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("403 must not be retried, calls=%d", calls)
	}
}

func TestWebSocketDeliversAndWrites(t *testing.T) {
	replies := make(chan ReplyRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		_ = wsjson.Write(ctx, conn, Message{Room: "streamer", Msg: "e4", Sender: strPtr("alice")})
		var rep ReplyRequest
		if err := wsjson.Read(ctx, conn, &rep); err == nil {
			replies <- rep
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), 0)
	got := make(chan *Message, 1)
	ws.OnMessage(func(m *Message) { got <- m })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ws.Close(context.Background())

	select {
	case m := <-got:
		if m.Msg != "e4" || m.Room != "streamer" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-ctx.Done():
		t.Fatalf("no message delivered")
	}

	eg := NewEgress("ws", false, nil, ws, nil)
	if err := eg.SendText(ctx, "streamer", "round open"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case rep := <-replies:
		if rep.Data != "round open" || rep.Type != "text" {
			t.Fatalf("unexpected reply: %+v", rep)
		}
	case <-ctx.Done():
		t.Fatalf("reply not received")
	}
}

func TestWriteWithoutConnectionFails(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1", 0)
	if err := ws.WriteJSON(context.Background(), ReplyRequest{}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := NewEgress("http", true, nil, nil, nil).SendText(context.Background(), "r", "x"); err != nil {
		t.Fatalf("dry run should not fail: %v", err)
	}
}
