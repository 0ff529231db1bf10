package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
)

func TestPushKeepsLatestFrame(t *testing.T) {
	c := &Client{send: make(chan Frame, 1), done: make(chan struct{})}

	c.Push(NewMessagesFrame("paris", []domain.Message{{ID: "1"}}))
	c.Push(NewMessagesFrame("paris", []domain.Message{{ID: "1"}, {ID: "2"}}))

	got := <-c.send
	if len(got.Messages) != 2 {
		t.Fatalf("expected the newest snapshot, got %+v", got)
	}

	close(c.done)
	c.Push(NewMessagesFrame("paris", nil)) // must not block once closed
}

func TestMessagesFrameNeverNull(t *testing.T) {
	f := NewMessagesFrame("paris", nil)
	if f.Messages == nil || f.Type != MessagesEvent {
		t.Fatalf("unexpected frame %+v", f)
	}
}

type server struct {
	hub     *Hub
	clients chan *Client
	url     string
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{hub: NewHub(), clients: make(chan *Client, 1)}
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cl := NewClient(conn, "paris", r.URL.Query().Get("user"), DefaultConfig(), logging.NewNop())
		if err := s.hub.Add(cl); err != nil {
			cl.Close(websocket.CloseTryAgainLater, err.Error())
			return
		}
		s.clients <- cl
		cl.Run(context.Background())
		s.hub.Remove(cl)
	}))
	t.Cleanup(srv.Close)

	s.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return s
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestClientDeliversFramesAndEviction(t *testing.T) {
	s := newServer(t)
	conn := dial(t, s.url+"?user=u")
	cl := <-s.clients

	if s.hub.Count("paris") != 1 {
		t.Fatalf("expected one connection, got %d", s.hub.Count("paris"))
	}

	cl.Push(NewMessagesFrame("paris", []domain.Message{{ID: "m1", Text: "hi"}}))
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != MessagesEvent || len(frame.Messages) != 1 || frame.Messages[0].Text != "hi" {
		t.Fatalf("unexpected frame %+v", frame)
	}

	if n := s.hub.Evict("paris", "someone-else", NewErrorFrame("paris", domain.ReasonActorBanned, "banned")); n != 0 {
		t.Fatalf("evicted the wrong user: %d", n)
	}
	if n := s.hub.Evict("paris", "u", NewErrorFrame("paris", domain.ReasonActorBanned, "banned")); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}

	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != ErrorEvent || frame.Error.Reason != string(domain.ReasonActorBanned) {
		t.Fatalf("expected an error frame, got %+v", frame)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected a policy violation close, got %v", err)
	}

	select {
	case <-cl.Done():
	case <-time.After(time.Second):
		t.Fatal("client not closed")
	}
}

func TestCloseAllRefusesNewConnections(t *testing.T) {
	s := newServer(t)
	conn := dial(t, s.url)
	<-s.clients

	s.hub.CloseAll()
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going away, got %v", err)
	}
	if err := s.hub.Add(&Client{AreaID: "paris"}); err != ErrHubClosed {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}
