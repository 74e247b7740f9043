package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hexclash/server/internal/hub"
	"hexclash/server/internal/match"
	"hexclash/server/internal/net/proto"
	"hexclash/server/internal/validate"
)

func newTestHub(t *testing.T) (*hub.Hub, int64, int64) {
	t.Helper()
	h, err := hub.New(hub.Config{
		Match: match.Config{
			ID:     "ws-test",
			Radius: 3,
			Seed:   "ws-test",
			Token:  validate.TokenConfig{Secret: []byte("ws-secret")},
		},
		IdleTimeout: -1,
	})
	if err != nil {
		t.Fatalf("hub.New: %v", err)
	}
	t.Cleanup(h.Close)
	ids := make([]int64, 0, 2)
	for _, team := range []string{"red", "blue"} {
		resp, err := h.Join(context.Background(), proto.JoinRequest{Name: team, Team: team, Template: "knight"})
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
		ids = append(ids, resp.ID)
	}
	return h, ids[0], ids[1]
}

func dial(t *testing.T, srvURL string, id int64, format string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srvURL, id, format), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("failed to decode websocket payload: %v", err)
	}
	return frame
}

// readUntil skips broadcast frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	for i := 0; i < 32; i++ {
		frame := readFrame(t, conn)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %s frame received", frameType)
	return nil
}

func TestSessionStartsWithResyncState(t *testing.T) {
	h, red, _ := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)

	conn := dial(t, srv.URL, red, "")
	frame := readFrame(t, conn)
	if frame["type"] != proto.TypeState {
		t.Fatalf("expected state frame, got %v", frame["type"])
	}
	if resync, _ := frame["resync"].(bool); !resync {
		t.Fatalf("expected the initial state to set resync")
	}
	snapshot, _ := frame["snapshot"].(map[string]any)
	if snapshot["matchId"] != "ws-test" {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
}

func TestSessionAnswersProtocolRequests(t *testing.T) {
	h, red, blue := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)

	h.Step(context.Background())
	actor, ok := h.Match().CurrentActor()
	if !ok {
		t.Fatalf("expected an elected actor")
	}
	other := red
	if actor == red {
		other = blue
	}

	conn := dial(t, srv.URL, actor, "")
	readUntil(t, conn, proto.TypeState)

	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeRequestToAct}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readUntil(t, conn, proto.TypeAccessToken)
	if allowed, _ := frame["allowed"].(bool); !allowed {
		t.Fatalf("expected a token for the actor, got %v", frame)
	}
	token, _ := frame["token"].(string)

	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeSubmitAction, UserID: other, Token: token}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readUntil(t, conn, proto.TypeAccessToken)
	if allowed, _ := frame["allowed"].(bool); allowed {
		t.Fatalf("a session must not act for another combatant")
	}

	if err := conn.WriteJSON(proto.ClientMessage{Type: proto.TypeRequestEndTurn, Token: token}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame = readUntil(t, conn, proto.TypeEndTurnAck)
	if ended, _ := frame["ended"].(bool); !ended {
		t.Fatalf("expected the turn to end, got %v", frame)
	}
}

func TestSessionUsesMsgpackWhenAsked(t *testing.T) {
	h, red, _ := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)

	conn := dial(t, srv.URL, red, "msgpack")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("expected a binary frame, got %d", messageType)
	}
	var frame proto.StateFrame
	if err := proto.Msgpack.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Type != proto.TypeState || frame.Snapshot.MatchID != "ws-test" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestUnknownCombatantIsRefused(t *testing.T) {
	h, _, _ := newTestHub(t)
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)

	conn := dial(t, srv.URL, 999, "")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}

	resp, err := http.Get(srv.URL + "/?id=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", resp.StatusCode)
	}
}

func websocketURL(t *testing.T, baseURL string, id int64, format string) string {
	t.Helper()

	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	query := parsed.Query()
	query.Set("id", strconv.FormatInt(id, 10))
	if format != "" {
		query.Set("format", format)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
