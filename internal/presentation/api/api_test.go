package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/configs"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/tourchat/internal/infrastructure/ws"
	"github.com/hilthontt/tourchat/internal/persistence/memory"
	feedsHandler "github.com/hilthontt/tourchat/internal/presentation/handler/feeds"
	healthHandler "github.com/hilthontt/tourchat/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/tourchat/internal/presentation/handler/messages"
	moderationHandler "github.com/hilthontt/tourchat/internal/presentation/handler/moderation"
	roomHandler "github.com/hilthontt/tourchat/internal/presentation/handler/rooms"
	toursHandler "github.com/hilthontt/tourchat/internal/presentation/handler/tours"
	"github.com/hilthontt/tourchat/internal/tour"
)

type testApp struct {
	srv   *httptest.Server
	rooms domain.RoomRepository
	audit domain.RoomAuditRepository
	hub   *ws.Hub
}

func newTestApp(t *testing.T, roomCreates *ratelimiter.FixedWindow) *testApp {
	t.Helper()

	rooms := memory.NewRoomRepository()
	messages := memory.NewMessageRepository()
	audit := memory.NewRoomAuditLogRepository()
	logger := logging.NewNop()
	hub := ws.NewHub()

	svc := chat.NewService(rooms, messages, chat.DefaultConfig(), chat.WithAuditLog(audit))

	cfg := configs.Config{
		HTTP: configs.HTTPConfig{
			AllowedOrigins: []string{"https://tour.example"},
			AllowedHeaders: []string{"Content-Type", "X-User-Id"},
		},
	}
	handlers := Handlers{
		Rooms:      roomHandler.NewHandler(svc, nil),
		Messages:   messagesHandler.NewHandler(svc),
		Moderation: moderationHandler.NewHandler(svc, hub),
		Feeds:      feedsHandler.NewHandler(svc, hub, cfg.HTTP.AllowedOrigins, ws.DefaultConfig(), logger),
		Tours:      toursHandler.NewHandler(tour.NewOrchestrator(nil, svc, logger)),
		Health:     healthHandler.NewHandler(nil),
	}
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1000, MaxBurst: 1000})

	app := NewApplication(cfg, handlers, logger, limiter, roomCreates)
	srv := httptest.NewServer(app.Mount())
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})

	return &testApp{srv: srv, rooms: rooms, audit: audit, hub: hub}
}

func (a *testApp) do(t *testing.T, method, path, user string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-Id", user)
		req.Header.Set("X-User-Name", strings.ToUpper(user))
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	var out map[string]any
	if res.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(res.Body).Decode(&out)
	}
	return res, out
}

func expectStatus(t *testing.T, res *http.Response, body map[string]any, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d: %v", res.Request.Method, res.Request.URL.Path, want, res.StatusCode, body)
	}
}

func expectReason(t *testing.T, body map[string]any, reason domain.Reason) {
	t.Helper()
	if body["reason"] != string(reason) {
		t.Fatalf("expected reason %q, got %v", reason, body)
	}
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	a := newTestApp(t, nil)

	res, body := a.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"areaId": "paris", "areaName": "Paris"})
	expectStatus(t, res, body, http.StatusUnauthorized)

	res, body = a.do(t, http.MethodPost, "/api/rooms", "owner", map[string]string{"areaId": " Paris ", "areaName": "Paris"})
	expectStatus(t, res, body, http.StatusOK)
	you := body["you"].(map[string]any)
	if you["role"] != "admin" || you["isAdmin"] != true {
		t.Fatalf("expected the creator to be an admin, got %v", you)
	}

	// Anyone can join an existing room.
	res, body = a.do(t, http.MethodPost, "/api/rooms", "", map[string]string{"areaId": "paris", "areaName": "Paris"})
	expectStatus(t, res, body, http.StatusOK)
	if _, ok := body["you"]; ok {
		t.Fatalf("anonymous callers get no role flags, got %v", body)
	}

	res, body = a.do(t, http.MethodGet, "/api/rooms/nowhere", "owner", nil)
	expectStatus(t, res, body, http.StatusNotFound)

	res, body = a.do(t, http.MethodPost, "/api/rooms/paris/messages", "visitor", map[string]string{"text": "  bonjour  "})
	expectStatus(t, res, body, http.StatusCreated)
	if body["text"] != "bonjour" || body["authorDisplayName"] != "VISITOR" {
		t.Fatalf("unexpected message %v", body)
	}
	messageID := body["id"].(string)

	res, body = a.do(t, http.MethodPost, "/api/rooms/paris/messages", "visitor", map[string]string{"text": "   "})
	expectStatus(t, res, body, http.StatusBadRequest)

	res, body = a.do(t, http.MethodDelete, "/api/rooms/paris/messages/"+messageID, "visitor", nil)
	expectStatus(t, res, body, http.StatusForbidden)
	expectReason(t, body, domain.ReasonRequiresAdmin)

	res, body = a.do(t, http.MethodDelete, "/api/rooms/paris/messages/"+messageID, "owner", nil)
	expectStatus(t, res, body, http.StatusNoContent)

	res, body = a.do(t, http.MethodDelete, "/api/rooms/paris/messages/"+messageID, "owner", nil)
	expectStatus(t, res, body, http.StatusNotFound)
	expectReason(t, body, domain.ReasonMessageNotFound)
}

func TestModerationOverHTTP(t *testing.T) {
	a := newTestApp(t, nil)

	res, body := a.do(t, http.MethodPost, "/api/rooms", "owner", map[string]string{"areaId": "rome", "areaName": "Rome"})
	expectStatus(t, res, body, http.StatusOK)

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/moderation/explode", "owner", map[string]string{"target": "x"})
	expectStatus(t, res, body, http.StatusNotFound)

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/moderation/promote", "owner", map[string]string{"target": "x"})
	expectStatus(t, res, body, http.StatusForbidden)
	expectReason(t, body, domain.ReasonRequiresMasterAdmin)

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/moderation/ban", "owner", map[string]string{"target": " "})
	expectStatus(t, res, body, http.StatusBadRequest)
	expectReason(t, body, domain.ReasonMissingTarget)

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/moderation/ban", "owner", map[string]string{"target": "troll"})
	expectStatus(t, res, body, http.StatusOK)

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/moderation/ban", "owner", map[string]string{"target": "troll"})
	expectStatus(t, res, body, http.StatusConflict)
	expectReason(t, body, domain.ReasonAlreadyBanned)

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/messages", "troll", map[string]string{"text": "hi"})
	expectStatus(t, res, body, http.StatusForbidden)
	expectReason(t, body, domain.ReasonActorBanned)

	res, body = a.do(t, http.MethodGet, "/api/rooms/rome", "troll", nil)
	expectStatus(t, res, body, http.StatusOK)
	if body["you"].(map[string]any)["isBanned"] != true {
		t.Fatalf("expected isBanned flag, got %v", body["you"])
	}

	res, body = a.do(t, http.MethodPost, "/api/rooms/rome/moderation/kick", "owner", map[string]string{"target": "guest"})
	expectStatus(t, res, body, http.StatusOK)
	res, body = a.do(t, http.MethodGet, "/api/rooms/rome", "guest", nil)
	expectStatus(t, res, body, http.StatusOK)
	if _, ok := body["you"].(map[string]any)["kickedUntil"]; !ok {
		t.Fatalf("expected kickedUntil for a kicked user, got %v", body["you"])
	}
}

func TestAuditOverHTTP(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()

	res, body := a.do(t, http.MethodPost, "/api/rooms", "owner", map[string]string{"areaId": "oslo", "areaName": "Oslo"})
	expectStatus(t, res, body, http.StatusOK)
	if err := a.audit.Log(ctx, domain.NewRoomCreatedLog("oslo", "owner", time.Now())); err != nil {
		t.Fatalf("seed audit: %v", err)
	}

	res, body = a.do(t, http.MethodGet, "/api/rooms/oslo/audit", "visitor", nil)
	expectStatus(t, res, body, http.StatusForbidden)

	res, body = a.do(t, http.MethodGet, "/api/rooms/oslo/audit?limit=zero", "owner", nil)
	expectStatus(t, res, body, http.StatusBadRequest)

	res, body = a.do(t, http.MethodGet, "/api/rooms/oslo/audit?limit=5", "owner", nil)
	expectStatus(t, res, body, http.StatusOK)
	if entries := body["entries"].([]any); len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %v", entries)
	}
}

func TestToursOverHTTP(t *testing.T) {
	a := newTestApp(t, nil)

	res, body := a.do(t, http.MethodPost, "/api/tours", "walker", map[string]string{"destination": "Lisbon"})
	expectStatus(t, res, body, http.StatusOK)
	if body["areaId"] != "lisbon" || body["room"] == nil {
		t.Fatalf("expected a tour with its room, got %v", body)
	}

	res, body = a.do(t, http.MethodPost, "/api/tours", "walker", map[string]string{"destination": ""})
	expectStatus(t, res, body, http.StatusBadRequest)
}

func TestRoomCreateLimit(t *testing.T) {
	fw := ratelimiter.NewFixedWindow(1, time.Hour)
	t.Cleanup(fw.Close)
	a := newTestApp(t, fw)

	res, body := a.do(t, http.MethodPost, "/api/rooms", "owner", map[string]string{"areaId": "a", "areaName": "A"})
	expectStatus(t, res, body, http.StatusOK)

	res, body = a.do(t, http.MethodPost, "/api/rooms", "owner", map[string]string{"areaId": "b", "areaName": "B"})
	expectStatus(t, res, body, http.StatusTooManyRequests)
	if res.Header.Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}
}

func TestInvalidIdentityHeader(t *testing.T) {
	a := newTestApp(t, nil)

	res, body := a.do(t, http.MethodGet, "/api/rooms/paris", "two words", nil)
	expectStatus(t, res, body, http.StatusBadRequest)
	if body["field"] != "identity" {
		t.Fatalf("expected identity field error, got %v", body)
	}
}

func TestCorsAndOperationalEndpoints(t *testing.T) {
	a := newTestApp(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, a.srv.URL+"/api/rooms", nil)
	req.Header.Set("Origin", "https://tour.example")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK || res.Header.Get("Access-Control-Allow-Origin") != "https://tour.example" {
		t.Fatalf("unexpected preflight response %d %v", res.StatusCode, res.Header)
	}

	req, _ = http.NewRequest(http.MethodOptions, a.srv.URL+"/api/rooms", nil)
	req.Header.Set("Origin", "https://evil.example")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	res.Body.Close()
	if res.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origins must not be allowed")
	}

	for _, path := range []string{"/api/health", "/api/healthz", "/api/live", "/api/ready", "/metrics"} {
		res, err := http.Get(a.srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, res.StatusCode)
		}
	}
}

func TestFeedOverWebsocket(t *testing.T) {
	a := newTestApp(t, nil)

	res, body := a.do(t, http.MethodPost, "/api/rooms", "owner", map[string]string{"areaId": "kyoto", "areaName": "Kyoto"})
	expectStatus(t, res, body, http.StatusOK)
	res, body = a.do(t, http.MethodPost, "/api/rooms/kyoto/messages", "owner", map[string]string{"text": "first"})
	expectStatus(t, res, body, http.StatusCreated)

	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/api/rooms/kyoto/ws"
	header := http.Header{"X-User-Id": {"viewer"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame ws.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if frame.Type != ws.MessagesEvent || len(frame.Messages) != 1 || frame.Messages[0].Text != "first" {
		t.Fatalf("unexpected snapshot %+v", frame)
	}

	res, body = a.do(t, http.MethodPost, "/api/rooms/kyoto/messages", "owner", map[string]string{"text": "second"})
	expectStatus(t, res, body, http.StatusCreated)
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(frame.Messages) != 2 || frame.Messages[1].Text != "second" {
		t.Fatalf("expected messages oldest first, got %+v", frame.Messages)
	}

	res, body = a.do(t, http.MethodPost, "/api/rooms/kyoto/moderation/ban", "owner", map[string]string{"target": "viewer"})
	expectStatus(t, res, body, http.StatusOK)
	if body["evicted"] != float64(1) {
		t.Fatalf("expected the viewer's feed to be evicted, got %v", body)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read eviction: %v", err)
	}
	if frame.Type != ws.ErrorEvent || frame.Error.Reason != string(domain.ReasonActorBanned) {
		t.Fatalf("expected a ban frame, got %+v", frame)
	}

	// A banned user cannot reconnect.
	_, res, err = websocket.DefaultDialer.Dial(url, header)
	if err == nil || res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a banned viewer, got %v", err)
	}
}
