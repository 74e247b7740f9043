package turns

import (
	"context"

	"hexclash/server/logging"
)

const (
	// EventElected is emitted when the readiness race elects an actor.
	EventElected logging.EventType = "turns.elected"
	// EventSkipped is emitted when an elected actor cannot act.
	EventSkipped logging.EventType = "turns.skipped"
	// EventEnded is emitted when a turn closes.
	EventEnded logging.EventType = "turns.ended"
	// EventRaceExhausted is emitted when the race hits its iteration cap
	// without electing anyone.
	EventRaceExhausted logging.EventType = "turns.race_exhausted"
	// EventIdleTimeout is emitted when a stalled turn is force-ended.
	EventIdleTimeout logging.EventType = "turns.idle_timeout"
)

// ElectedPayload captures the race outcome.
type ElectedPayload struct {
	Readiness  float64 `json:"readiness"`
	Iterations int     `json:"iterations"`
}

// SkippedPayload explains why the actor lost the turn.
type SkippedPayload struct {
	Reason string `json:"reason"`
}

// EndedPayload summarises a finished turn.
type EndedPayload struct {
	Reason    string  `json:"reason"`
	Actions   int     `json:"actions"`
	Readiness float64 `json:"readiness"`
}

// RaceExhaustedPayload reports a race that could not elect an actor.
type RaceExhaustedPayload struct {
	Iterations int `json:"iterations"`
	Contenders int `json:"contenders"`
}

// IdleTimeoutPayload reports how long the stalled turn waited.
type IdleTimeoutPayload struct {
	WaitedMillis int64 `json:"waitedMillis"`
	LimitMillis  int64 `json:"limitMillis"`
}

// Elected publishes an election event.
func Elected(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload ElectedPayload, extra map[string]any) {
	publish(ctx, pub, EventElected, logging.SeverityInfo, turn, actor, payload, extra)
}

// Skipped publishes a skipped turn.
func Skipped(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload SkippedPayload, extra map[string]any) {
	publish(ctx, pub, EventSkipped, logging.SeverityInfo, turn, actor, payload, extra)
}

// Ended publishes the end of a turn.
func Ended(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload EndedPayload, extra map[string]any) {
	publish(ctx, pub, EventEnded, logging.SeverityInfo, turn, actor, payload, extra)
}

// RaceExhausted publishes an error when no actor could be elected.
func RaceExhausted(ctx context.Context, pub logging.Publisher, turn uint64, payload RaceExhaustedPayload, extra map[string]any) {
	publish(ctx, pub, EventRaceExhausted, logging.SeverityError, turn, logging.EntityRef{ID: "scheduler", Kind: logging.EntityKindScheduler}, payload, extra)
}

// IdleTimeout publishes a warning when the idle collaborator force-ends a turn.
func IdleTimeout(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload IdleTimeoutPayload, extra map[string]any) {
	publish(ctx, pub, EventIdleTimeout, logging.SeverityWarn, turn, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, kind logging.EventType, severity logging.Severity, turn uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     kind,
		Turn:     turn,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryTurns,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
