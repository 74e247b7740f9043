// Package hub hosts one authoritative match for networked clients. It owns
// the session registry, drives the turn loop and bot combatants, force-ends
// stalled turns and fans match events out to every subscriber.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"hexclash/server/internal/action"
	"hexclash/server/internal/bot"
	"hexclash/server/internal/catalog"
	"hexclash/server/internal/events"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/match"
	"hexclash/server/internal/net/proto"
	"hexclash/server/internal/telemetry"
	"hexclash/server/internal/validate"
	"hexclash/server/logging"
	loggingturns "hexclash/server/logging/turns"
)

const (
	// DefaultIdleTimeout force-ends a turn whose actor has been silent this long.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultStepInterval is the turn loop cadence.
	DefaultStepInterval = 100 * time.Millisecond
)

var (
	// ErrUnknownSubscriber reports a session for an id that never joined.
	ErrUnknownSubscriber = errors.New("hub: unknown combatant")
	// ErrMissingTemplate reports a join without a template.
	ErrMissingTemplate = errors.New("hub: join requires a template")
)

// Config configures a hub.
type Config struct {
	Match match.Config
	// IdleTimeout bounds how long a human actor may hold the turn without
	// sending a request. Zero selects the default; negative disables it.
	IdleTimeout  time.Duration
	StepInterval time.Duration
	// Codec is the default wire codec for sessions that do not negotiate one.
	Codec   proto.Codec
	Logger  telemetry.Logger
	Metrics *logging.Metrics
	Now     func() time.Time
}

func (c Config) normalized() Config {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.StepInterval <= 0 {
		c.StepInterval = DefaultStepInterval
	}
	if c.Codec == nil {
		c.Codec = proto.JSON
	}
	if c.Logger == nil {
		c.Logger = telemetry.NopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = logging.NewMetrics()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.Match.Authority = true
	if c.Match.Logger == nil {
		c.Match.Logger = c.Logger
	}
	return c
}

// Hub owns the authoritative match and its observers.
type Hub struct {
	mu          sync.Mutex
	cfg         Config
	match       *match.Match
	logger      telemetry.Logger
	metrics     telemetry.Metrics
	subscribers map[int64]*Subscriber
	bots        map[int64]struct{}

	// idle tracking for the current turn
	watchActor   int64
	watchTurn    uint64
	lastActivity time.Time

	stopEvents func()
}

// New builds the match and subscribes the broadcast fan-out to its bus.
func New(cfg Config) (*Hub, error) {
	cfg = cfg.normalized()
	m, err := match.New(cfg.Match)
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	h := &Hub{
		cfg:         cfg,
		match:       m,
		logger:      cfg.Logger,
		metrics:     telemetry.WrapMetrics(cfg.Metrics),
		subscribers: make(map[int64]*Subscriber),
		bots:        make(map[int64]struct{}),
	}
	h.stopEvents = m.Bus().Subscribe("", h.broadcast)
	return h, nil
}

// Match exposes the hosted match.
func (h *Hub) Match() *match.Match {
	return h.match
}

// Codec returns the default wire codec.
func (h *Hub) Codec() proto.Codec {
	return h.cfg.Codec
}

// Join adds a combatant and returns its id with the current state.
func (h *Hub) Join(ctx context.Context, req proto.JoinRequest) (proto.JoinResponse, error) {
	if req.Template == "" {
		return proto.JoinResponse{}, ErrMissingTemplate
	}
	var at *hex.Coord
	if req.Q != nil && req.R != nil {
		cell := hex.NewCoord(*req.Q, *req.R)
		at = &cell
	}
	id, err := h.match.Join(ctx, catalog.Spec{Name: req.Name, Team: req.Team, Template: req.Template, Bot: req.Bot}, at)
	if err != nil {
		return proto.JoinResponse{}, err
	}
	if req.Bot {
		h.mu.Lock()
		h.bots[id] = struct{}{}
		h.mu.Unlock()
	}
	return proto.NewJoinResponse(id, h.match.RequestStateSync()), nil
}

// Leave removes a combatant and closes its session.
func (h *Hub) Leave(ctx context.Context, id int64) error {
	h.mu.Lock()
	sub := h.subscribers[id]
	delete(h.subscribers, id)
	delete(h.bots, id)
	h.mu.Unlock()
	if sub != nil {
		sub.conn.Close()
	}
	return h.match.Remove(ctx, id, "left")
}

// RequestToAct forwards a token request for userID.
func (h *Hub) RequestToAct(ctx context.Context, userID int64) match.AccessToken {
	h.noteActivity(userID)
	resp := h.match.RequestToAct(ctx, userID)
	h.countToken(resp)
	return resp
}

// SubmitAction forwards a token-carrying action.
func (h *Hub) SubmitAction(ctx context.Context, tok match.AccessToken) match.AccessToken {
	h.noteActivity(tok.UserID)
	resp := h.match.SubmitAction(ctx, tok)
	if resp.Action != nil {
		h.metrics.Add(telemetry.KeyActionsCommitted, 1)
	}
	h.countToken(resp)
	return resp
}

// RequestEndTurn forwards an end-turn request.
func (h *Hub) RequestEndTurn(ctx context.Context, tok match.AccessToken) bool {
	h.noteActivity(tok.UserID)
	ended := h.match.RequestEndTurn(ctx, tok)
	if !ended {
		h.metrics.Add(telemetry.KeyRequestsRejected, 1)
	}
	return ended
}

// RequestStateSync returns a full snapshot.
func (h *Hub) RequestStateSync() match.Snapshot {
	return h.match.RequestStateSync()
}

// Keyframe looks up a retained keyframe. A nack is returned when the
// sequence has been evicted or never existed.
func (h *Hub) Keyframe(sequence uint64) (proto.KeyframeFrame, *proto.KeyframeNack) {
	frame, ok := h.match.Journal().KeyframeBySequence(sequence)
	if !ok {
		nack := proto.NewKeyframeNack(sequence, "expired")
		return proto.KeyframeFrame{}, &nack
	}
	return proto.NewKeyframeFrame(frame.Sequence, frame.Turn, frame.State), nil
}

func (h *Hub) countToken(resp match.AccessToken) {
	switch {
	case resp.Allowed:
		h.metrics.Add(telemetry.KeyTokensIssued, 1)
	case resp.Action == nil:
		h.metrics.Add(telemetry.KeyRequestsRejected, 1)
	}
}

// noteActivity restarts the idle clock when the current actor speaks.
func (h *Hub) noteActivity(userID int64) {
	actor, ok := h.match.CurrentActor()
	if !ok || actor != userID {
		return
	}
	now := h.cfg.Now()
	h.mu.Lock()
	h.lastActivity = now
	h.mu.Unlock()
}

// Subscribe binds conn to combatant id. An existing session for the same id
// is closed and replaced.
func (h *Hub) Subscribe(id int64, conn Conn, codec proto.Codec) (*Subscriber, error) {
	if _, ok := h.match.Combatant(id); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSubscriber, id)
	}
	if codec == nil {
		codec = h.cfg.Codec
	}
	sub := &Subscriber{id: id, conn: conn, codec: codec}
	h.mu.Lock()
	existing := h.subscribers[id]
	h.subscribers[id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()
	if existing != nil {
		existing.conn.Close()
	}
	h.metrics.Store(telemetry.KeySessions, uint64(count))
	return sub, nil
}

// Unsubscribe drops sub if it is still the registered session for its id.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if h.subscribers[sub.id] == sub {
		delete(h.subscribers, sub.id)
	}
	count := len(h.subscribers)
	h.mu.Unlock()
	h.metrics.Store(telemetry.KeySessions, uint64(count))
}

// Run drives Step at the configured cadence until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.StepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Step(ctx)
		}
	}
}

// Step advances the turn loop once: it elects an actor when nobody holds
// the turn, plays bot turns and force-ends a human turn that went idle.
func (h *Hub) Step(ctx context.Context) {
	defer h.storeJournalGauges()
	if over, _ := h.match.Over(); over {
		return
	}
	actor, ok := h.match.CurrentActor()
	if !ok {
		if !h.match.Contested() {
			return
		}
		next, elected, err := h.match.Advance(ctx)
		if err != nil {
			if !errors.Is(err, match.ErrFinished) {
				h.logger.Printf("advance: %v", err)
			}
			return
		}
		if !elected {
			return
		}
		actor = next
	}

	now := h.cfg.Now()
	turn := h.match.Turn()
	h.mu.Lock()
	if actor != h.watchActor || turn != h.watchTurn {
		h.watchActor = actor
		h.watchTurn = turn
		h.lastActivity = now
	}
	_, isBot := h.bots[actor]
	since := h.lastActivity
	h.mu.Unlock()

	if isBot {
		h.playBot(ctx, actor)
		return
	}
	if h.cfg.IdleTimeout < 0 {
		return
	}
	waited := now.Sub(since)
	if waited < h.cfg.IdleTimeout {
		return
	}
	if !h.match.EndTurn(ctx, match.EndTimeout) {
		return
	}
	h.metrics.Add(telemetry.KeyIdleTimeouts, 1)
	loggingturns.IdleTimeout(ctx, h.cfg.Match.Publisher, turn, logging.EntityRef{ID: strconv.FormatInt(actor, 10), Kind: logging.EntityKindCombatant}, loggingturns.IdleTimeoutPayload{
		WaitedMillis: waited.Milliseconds(),
		LimitMillis:  h.cfg.IdleTimeout.Milliseconds(),
	}, nil)
	h.logger.Printf("turn %d: %d idle for %s, turn ended", turn, actor, waited)
}

// playBot runs a bot turn through the same token protocol a client uses.
func (h *Hub) playBot(ctx context.Context, id int64) {
	tok := h.RequestToAct(ctx, id)
	if !tok.Allowed {
		h.match.EndTurn(ctx, match.EndRequested)
		return
	}
	rules := h.match.Rules()
	for i := 0; i < bot.MaxActionsPerTurn; i++ {
		var (
			act    action.Action
			chosen bool
		)
		h.match.Inspect(func(view validate.View) {
			act, chosen = bot.Decide(view, rules, id)
		})
		if !chosen {
			break
		}
		resp := h.SubmitAction(ctx, match.AccessToken{UserID: id, Token: tok.Token, Action: &act})
		if resp.Action == nil {
			h.logger.Printf("bot %d: %s rejected", id, act.Kind)
			break
		}
		if !resp.Allowed {
			return
		}
		tok = resp
	}
	h.RequestEndTurn(ctx, match.AccessToken{UserID: id, Token: tok.Token})
}

func (h *Hub) storeJournalGauges() {
	size, _, newest := h.match.Journal().KeyframeWindow()
	h.metrics.Store(telemetry.KeyKeyframeSize, uint64(size))
	h.metrics.Store(telemetry.KeyKeyframeNewest, newest)
}

// broadcast fans a match event out to every session. Turn and match ends
// are followed by a full state frame so observers can reconcile.
func (h *Hub) broadcast(event events.Event) {
	if event.Kind == events.TurnStarted {
		h.metrics.Add(telemetry.KeyTurnsStarted, 1)
	}
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	frames := []any{proto.NewEventFrame(event, h.match.Journal().Sequence())}
	if event.Kind == events.TurnEnded || event.Kind == events.MatchEnded {
		frames = append(frames, proto.NewStateFrame(h.match.RequestStateSync(), false))
	}
	for _, frame := range frames {
		h.fanOut(subs, frame)
	}
}

func (h *Hub) fanOut(subs []*Subscriber, frame any) {
	encoded := make(map[proto.Format][]byte, 2)
	for _, sub := range subs {
		format := sub.codec.Format()
		data, ok := encoded[format]
		if !ok {
			var err error
			data, err = sub.codec.Marshal(frame)
			if err != nil {
				h.logger.Printf("encode %s frame: %v", format, err)
				continue
			}
			encoded[format] = data
		}
		if err := sub.write(data); err != nil {
			h.logger.Printf("send to %d failed: %v", sub.id, err)
			h.Unsubscribe(sub)
			sub.conn.Close()
			continue
		}
		h.metrics.Add(telemetry.KeyBroadcastMessages, 1)
		h.metrics.Add(telemetry.KeyBroadcastBytes, uint64(len(data)))
	}
}

// Diagnostics summarises the hub for the diagnostics endpoint.
type Diagnostics struct {
	MatchID     string            `json:"matchId"`
	Turn        uint64            `json:"turn"`
	Phase       string            `json:"phase"`
	Actor       int64             `json:"actor,omitempty"`
	Over        bool              `json:"over"`
	Winner      string            `json:"winner,omitempty"`
	Combatants  int               `json:"combatants"`
	Sessions    int               `json:"sessions"`
	Bots        int               `json:"bots"`
	IdleMillis  int64             `json:"idleMillis"`
	LimitMillis int64             `json:"idleLimitMillis"`
	Telemetry   map[string]uint64 `json:"telemetry"`
}

// Diagnostics reports the current hub state.
func (h *Hub) Diagnostics() Diagnostics {
	actor, _ := h.match.CurrentActor()
	over, winner := h.match.Over()
	d := Diagnostics{
		MatchID:     h.match.ID(),
		Turn:        h.match.Turn(),
		Phase:       h.match.Phase(),
		Actor:       actor,
		Over:        over,
		Winner:      winner,
		Combatants:  len(h.match.Combatants()),
		LimitMillis: h.cfg.IdleTimeout.Milliseconds(),
		Telemetry:   h.cfg.Metrics.Snapshot(),
	}
	now := h.cfg.Now()
	h.mu.Lock()
	d.Sessions = len(h.subscribers)
	d.Bots = len(h.bots)
	if actor != 0 && actor == h.watchActor {
		d.IdleMillis = now.Sub(h.lastActivity).Milliseconds()
	}
	h.mu.Unlock()
	return d
}

// Close detaches the hub from the match bus and closes every session.
func (h *Hub) Close() {
	if h.stopEvents != nil {
		h.stopEvents()
	}
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[int64]*Subscriber)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.conn.Close()
	}
}
