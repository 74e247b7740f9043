package network

import (
	"context"

	"hexclash/server/logging"
)

const (
	// EventTokenIssued is emitted when the elected actor receives an access token.
	EventTokenIssued logging.EventType = "network.token_issued"
	// EventRequestRejected is emitted when a turn request fails validation.
	// Only the log carries the reason; the requester sees allowed=false.
	EventRequestRejected logging.EventType = "network.request_rejected"
)

// TokenPayload identifies an issued token without exposing it.
type TokenPayload struct {
	TokenID string `json:"tokenId"`
	Turn    uint64 `json:"turn"`
	Seq     uint64 `json:"seq"`
}

// RejectedPayload captures why a request was refused.
type RejectedPayload struct {
	Request string `json:"request"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// TokenIssued publishes a debug event for a freshly minted token.
func TokenIssued(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload TokenPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTokenIssued,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// RequestRejected publishes a warning when a turn request is refused.
func RequestRejected(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload RejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRequestRejected,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
