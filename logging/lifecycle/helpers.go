package lifecycle

import (
	"context"

	"hexclash/server/logging"
)

const (
	// EventCombatantJoined is emitted when a combatant is placed on the grid.
	EventCombatantJoined logging.EventType = "lifecycle.combatant_joined"
	// EventCombatantRemoved is emitted when a combatant leaves the match.
	EventCombatantRemoved logging.EventType = "lifecycle.combatant_removed"
	// EventMatchEnded is emitted once a single team is left standing.
	EventMatchEnded logging.EventType = "lifecycle.match_ended"
)

// CombatantJoinedPayload captures spawn metadata for a new combatant.
type CombatantJoinedPayload struct {
	Template string `json:"template"`
	Team     string `json:"team"`
	Q        int    `json:"q"`
	R        int    `json:"r"`
}

// CombatantRemovedPayload captures the reason a combatant left.
type CombatantRemovedPayload struct {
	Reason string `json:"reason"`
}

// MatchEndedPayload names the surviving team, empty for a draw.
type MatchEndedPayload struct {
	Winner string `json:"winner,omitempty"`
	Turns  uint64 `json:"turns"`
}

// CombatantJoined publishes a combatant join event.
func CombatantJoined(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload CombatantJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCombatantJoined,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CombatantRemoved publishes a combatant removal event.
func CombatantRemoved(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload CombatantRemovedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCombatantRemoved,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// MatchEnded publishes the match result.
func MatchEnded(ctx context.Context, pub logging.Publisher, turn uint64, payload MatchEndedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMatchEnded,
		Turn:     turn,
		Actor:    logging.EntityRef{ID: "match", Kind: logging.EntityKindMatch},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
