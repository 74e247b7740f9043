package status_effects

import (
	"context"

	"hexclash/server/logging"
)

const (
	// EventApplied is emitted when a new status effect instance is created.
	EventApplied logging.EventType = "status_effects.applied"
	// EventStacked is emitted when an existing instance gains stacks, is
	// refreshed or replaced.
	EventStacked logging.EventType = "status_effects.stacked"
	// EventRejected is emitted when an application is ignored or refused.
	EventRejected logging.EventType = "status_effects.rejected"
	// EventRemoved is emitted when an instance expires or is purged.
	EventRemoved logging.EventType = "status_effects.removed"
)

// AppliedPayload captures details about a status effect application.
type AppliedPayload struct {
	StatusEffect string `json:"statusEffect"`
	Outcome      string `json:"outcome"`
	SourceID     string `json:"sourceId,omitempty"`
	Stacks       int    `json:"stacks"`
	Remaining    int    `json:"remainingTurns,omitempty"`
	Permanent    bool   `json:"permanent,omitempty"`
}

// RemovedPayload describes why an instance left the entity.
type RemovedPayload struct {
	StatusEffect string `json:"statusEffect"`
	Reason       string `json:"reason"`
	Stacks       int    `json:"stacks"`
}

// Applied publishes a status effect application event.
func Applied(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload AppliedPayload, extra map[string]any) {
	publish(ctx, pub, EventApplied, logging.SeverityInfo, turn, actor, target, payload, extra)
}

// Stacked publishes a stacking update for an existing instance.
func Stacked(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload AppliedPayload, extra map[string]any) {
	publish(ctx, pub, EventStacked, logging.SeverityDebug, turn, actor, target, payload, extra)
}

// Rejected publishes an application the stacking rule or cap refused.
func Rejected(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, target logging.EntityRef, payload AppliedPayload, extra map[string]any) {
	publish(ctx, pub, EventRejected, logging.SeverityDebug, turn, actor, target, payload, extra)
}

// Removed publishes a status effect removal event.
func Removed(ctx context.Context, pub logging.Publisher, turn uint64, target logging.EntityRef, payload RemovedPayload, extra map[string]any) {
	publish(ctx, pub, EventRemoved, logging.SeverityInfo, turn, target, target, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, kind logging.EventType, severity logging.Severity, turn uint64, actor, target logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     kind,
		Turn:     turn,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: severity,
		Category: logging.CategoryStatus,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
