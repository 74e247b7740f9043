// Package intake routes decoded client messages to the match hub. The HTTP
// handlers and websocket sessions share it so both transports answer the
// same requests with the same frames.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hexclash/server/internal/match"
	"hexclash/server/internal/net/proto"
)

var (
	// ErrUnknownType reports a message type the server does not handle.
	ErrUnknownType = errors.New("intake: unknown message type")
	// ErrMissingSequence reports a keyframe request without a sequence.
	ErrMissingSequence = errors.New("intake: keyframe request without sequence")
)

// Requests is the slice of the hub a transport forwards to.
type Requests interface {
	RequestToAct(ctx context.Context, userID int64) match.AccessToken
	SubmitAction(ctx context.Context, tok match.AccessToken) match.AccessToken
	RequestEndTurn(ctx context.Context, tok match.AccessToken) bool
	RequestStateSync() match.Snapshot
	Keyframe(sequence uint64) (proto.KeyframeFrame, *proto.KeyframeNack)
}

// Context carries the per-connection inputs of a dispatch.
type Context struct {
	Requests Requests
	// Bound is the combatant a websocket session authenticated as. Zero
	// means the caller is not bound and the message's userId is used as is.
	Bound int64
	Now   func() time.Time
}

// Handle answers msg. Protocol refusals are ordinary frames with
// allowed=false; an error means the message itself could not be served.
func Handle(ctx context.Context, c Context, msg proto.ClientMessage) (any, error) {
	if c.Requests == nil {
		return nil, errors.New("intake: no request handler")
	}
	if c.Bound != 0 && msg.UserID != 0 && msg.UserID != c.Bound {
		return deny(msg), nil
	}
	if c.Bound != 0 {
		msg.UserID = c.Bound
	}

	switch msg.Type {
	case proto.TypeRequestToAct:
		return proto.NewAccessTokenFrame(c.Requests.RequestToAct(ctx, msg.UserID)), nil
	case proto.TypeSubmitAction:
		return proto.NewAccessTokenFrame(c.Requests.SubmitAction(ctx, msg.AccessToken())), nil
	case proto.TypeRequestEndTurn:
		tok := msg.AccessToken()
		tok.Action = nil
		return proto.NewEndTurnAck(msg.UserID, c.Requests.RequestEndTurn(ctx, tok)), nil
	case proto.TypeRequestStateSync:
		return proto.NewStateFrame(c.Requests.RequestStateSync(), false), nil
	case proto.TypeKeyframeReq:
		if msg.KeyframeSeq == nil {
			return nil, ErrMissingSequence
		}
		frame, nack := c.Requests.Keyframe(*msg.KeyframeSeq)
		if nack != nil {
			return *nack, nil
		}
		return frame, nil
	case proto.TypeHeartbeat:
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		return proto.NewHeartbeat(now().UnixMilli(), msg.SentAt), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
}

// deny answers a message sent on behalf of another combatant.
func deny(msg proto.ClientMessage) any {
	if msg.Type == proto.TypeRequestEndTurn {
		return proto.NewEndTurnAck(msg.UserID, false)
	}
	return proto.NewAccessTokenFrame(match.AccessToken{UserID: msg.UserID})
}
