package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"hexclash/server/internal/events"
	"hexclash/server/internal/match"
	"hexclash/server/internal/net/proto"
	"hexclash/server/internal/telemetry"
	"hexclash/server/internal/validate"
	"hexclash/server/logging"
)

type recordingConn struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.messages))
	for _, data := range c.messages {
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		out = append(out, frame)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHub(t *testing.T) (*Hub, *fakeClock, *logging.Metrics) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	metrics := logging.NewMetrics()
	h, err := New(Config{
		Match: match.Config{
			ID:     "hub-test",
			Radius: 4,
			Seed:   "hub-test",
			Token:  validate.TokenConfig{Secret: []byte("hub-secret")},
		},
		IdleTimeout: time.Minute,
		Metrics:     metrics,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.Close)
	return h, clock, metrics
}

func joinAt(t *testing.T, h *Hub, team string, bot bool, q, r int) int64 {
	t.Helper()
	resp, err := h.Join(context.Background(), proto.JoinRequest{Name: team, Team: team, Template: "brute", Bot: bot, Q: &q, R: &r})
	if err != nil {
		t.Fatalf("Join %s: %v", team, err)
	}
	if resp.Type != proto.TypeJoin || resp.MatchID != "hub-test" {
		t.Fatalf("unexpected join response: %+v", resp)
	}
	if _, ok := resp.Snapshot.Entity(resp.ID); !ok {
		t.Fatalf("join snapshot is missing combatant %d", resp.ID)
	}
	return resp.ID
}

func TestJoinRequiresTemplate(t *testing.T) {
	h, _, _ := newTestHub(t)
	if _, err := h.Join(context.Background(), proto.JoinRequest{Team: "red"}); !errors.Is(err, ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate, got %v", err)
	}
}

func TestStepWaitsForTwoTeams(t *testing.T) {
	h, _, _ := newTestHub(t)
	joinAt(t, h, "red", false, 0, 0)
	h.Step(context.Background())
	if _, ok := h.Match().CurrentActor(); ok {
		t.Fatalf("expected no election with a single team")
	}
	joinAt(t, h, "blue", false, 2, 0)
	h.Step(context.Background())
	if _, ok := h.Match().CurrentActor(); !ok {
		t.Fatalf("expected an actor once two teams joined")
	}
}

func TestIdleTurnIsForceEnded(t *testing.T) {
	h, clock, metrics := newTestHub(t)
	ctx := context.Background()
	joinAt(t, h, "red", false, 0, 0)
	joinAt(t, h, "blue", false, 2, 0)

	h.Step(ctx)
	actor, ok := h.Match().CurrentActor()
	if !ok {
		t.Fatalf("expected an elected actor")
	}

	clock.Advance(40 * time.Second)
	if tok := h.RequestToAct(ctx, actor); !tok.Allowed {
		t.Fatalf("expected a token for the actor")
	}
	clock.Advance(40 * time.Second)
	h.Step(ctx)
	if current, ok := h.Match().CurrentActor(); !ok || current != actor {
		t.Fatalf("activity should have kept the turn alive, actor=%d ok=%v", current, ok)
	}

	clock.Advance(61 * time.Second)
	h.Step(ctx)
	if current, ok := h.Match().CurrentActor(); ok && current == actor && h.Match().Turn() == 1 {
		t.Fatalf("expected the idle turn to end")
	}
	if got := metrics.Load(telemetry.KeyIdleTimeouts); got != 1 {
		t.Fatalf("expected one idle timeout, got %d", got)
	}
	if got := metrics.Load(telemetry.KeyTokensIssued); got != 1 {
		t.Fatalf("expected one issued token, got %d", got)
	}
}

func TestBotsPlayThroughTokenProtocol(t *testing.T) {
	h, _, metrics := newTestHub(t)
	joinAt(t, h, "red", true, 0, 0)
	joinAt(t, h, "blue", true, 1, 0)

	for i := 0; i < 10; i++ {
		h.Step(context.Background())
	}
	if got := metrics.Load(telemetry.KeyActionsCommitted); got == 0 {
		t.Fatalf("expected bots to commit actions")
	}
	if got := metrics.Load(telemetry.KeyTurnsStarted); got < 2 {
		t.Fatalf("expected several turns, got %d", got)
	}
	if got := metrics.Load(telemetry.KeyIdleTimeouts); got != 0 {
		t.Fatalf("bots should never time out, got %d", got)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h, _, metrics := newTestHub(t)
	ctx := context.Background()
	red := joinAt(t, h, "red", false, 0, 0)
	joinAt(t, h, "blue", false, 2, 0)

	conn := &recordingConn{}
	if _, err := h.Subscribe(red, conn, nil); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	h.Step(ctx)
	actor, _ := h.Match().CurrentActor()
	tok := h.RequestToAct(ctx, actor)
	if !h.RequestEndTurn(ctx, tok) {
		t.Fatalf("expected end turn to succeed")
	}

	kinds := map[string]bool{}
	sawState := false
	for _, frame := range conn.frames(t) {
		switch frame["type"] {
		case proto.TypeEvent:
			event, _ := frame["event"].(map[string]any)
			kind, _ := event["kind"].(string)
			kinds[kind] = true
		case proto.TypeState:
			sawState = true
		}
	}
	for _, want := range []events.Kind{events.ActorElected, events.TurnStarted, events.TurnEnded} {
		if !kinds[string(want)] {
			t.Fatalf("missing %s event, saw %v", want, kinds)
		}
	}
	if !sawState {
		t.Fatalf("expected a state frame after the turn ended")
	}
	if metrics.Load(telemetry.KeyBroadcastMessages) == 0 || metrics.Load(telemetry.KeyBroadcastBytes) == 0 {
		t.Fatalf("expected broadcast metrics to be recorded")
	}
}

func TestFailingSubscriberIsDropped(t *testing.T) {
	h, _, _ := newTestHub(t)
	red := joinAt(t, h, "red", false, 0, 0)
	joinAt(t, h, "blue", false, 2, 0)

	conn := &recordingConn{fail: true}
	if _, err := h.Subscribe(red, conn, nil); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	h.Step(context.Background())
	if got := h.Diagnostics().Sessions; got != 0 {
		t.Fatalf("expected the broken session to be dropped, %d remain", got)
	}
	if !conn.closed {
		t.Fatalf("expected the broken connection to be closed")
	}
}

func TestSubscribeReplacesSession(t *testing.T) {
	h, _, _ := newTestHub(t)
	red := joinAt(t, h, "red", false, 0, 0)

	if _, err := h.Subscribe(99, &recordingConn{}, nil); !errors.Is(err, ErrUnknownSubscriber) {
		t.Fatalf("expected ErrUnknownSubscriber, got %v", err)
	}
	first := &recordingConn{}
	firstSub, err := h.Subscribe(red, first, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := h.Subscribe(red, &recordingConn{}, proto.Msgpack); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !first.closed {
		t.Fatalf("expected the replaced session to be closed")
	}
	h.Unsubscribe(firstSub)
	if got := h.Diagnostics().Sessions; got != 1 {
		t.Fatalf("stale unsubscribe removed the live session, sessions=%d", got)
	}
}

func TestKeyframeLookup(t *testing.T) {
	h, _, _ := newTestHub(t)
	ctx := context.Background()
	joinAt(t, h, "red", false, 0, 0)
	joinAt(t, h, "blue", false, 2, 0)

	if _, nack := h.Keyframe(42); nack == nil || !nack.Resync || nack.Type != proto.TypeKeyframeNack {
		t.Fatalf("expected a resync nack, got %+v", nack)
	}

	h.Step(ctx)
	actor, _ := h.Match().CurrentActor()
	h.RequestEndTurn(ctx, h.RequestToAct(ctx, actor))

	latest, ok := h.Match().Journal().Latest()
	if !ok {
		t.Fatalf("expected a keyframe after the turn ended")
	}
	frame, nack := h.Keyframe(latest.Sequence)
	if nack != nil {
		t.Fatalf("unexpected nack: %+v", nack)
	}
	if frame.Sequence != latest.Sequence || frame.Snapshot.MatchID != "hub-test" {
		t.Fatalf("unexpected keyframe: %+v", frame)
	}
}

func TestLeaveRemovesCombatant(t *testing.T) {
	h, _, _ := newTestHub(t)
	red := joinAt(t, h, "red", false, 0, 0)
	conn := &recordingConn{}
	if _, err := h.Subscribe(red, conn, nil); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := h.Leave(context.Background(), red); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, ok := h.Match().Combatant(red); ok {
		t.Fatalf("expected the combatant to be removed")
	}
	if !conn.closed {
		t.Fatalf("expected the session to be closed")
	}
	if err := h.Leave(context.Background(), red); !errors.Is(err, match.ErrUnknownCombatant) {
		t.Fatalf("expected ErrUnknownCombatant, got %v", err)
	}
}
