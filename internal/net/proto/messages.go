package proto

import (
	"fmt"

	"hexclash/server/internal/action"
	"hexclash/server/internal/events"
	"hexclash/server/internal/match"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for outbound payloads.
	typeAccessToken  = "accessToken"
	typeEndTurnAck   = "endTurnAck"
	typeState        = "state"
	typeEvent        = "event"
	typeKeyframe     = "keyframe"
	typeKeyframeNack = "keyframeNack"
	typeHeartbeat    = "heartbeat"
	typeJoin         = "join"
)

// Client message type identifiers.
const (
	TypeRequestToAct     = "requestToAct"
	TypeSubmitAction     = "submitAction"
	TypeRequestEndTurn   = "requestEndTurn"
	TypeRequestStateSync = "requestStateSync"
	TypeKeyframeReq      = "keyframeRequest"
	TypeHeartbeat        = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeAccessToken  = typeAccessToken
	TypeEndTurnAck   = typeEndTurnAck
	TypeState        = typeState
	TypeEvent        = typeEvent
	TypeKeyframe     = typeKeyframe
	TypeKeyframeNack = typeKeyframeNack
	TypeJoin         = typeJoin
)

// ClientMessage captures an inbound request from a client, over either the
// websocket or an HTTP body.
type ClientMessage struct {
	Ver         int            `json:"ver,omitempty"`
	Type        string         `json:"type"`
	UserID      int64          `json:"userId"`
	Token       string         `json:"token,omitempty"`
	Action      *action.Action `json:"action,omitempty"`
	KeyframeSeq *uint64        `json:"keyframeSeq,omitempty"`
	SentAt      int64          `json:"sentAt,omitempty"`
}

// DecodeClientMessage converts raw payloads into a structured message.
func DecodeClientMessage(codec Codec, payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if codec == nil {
		codec = JSON
	}
	if err := codec.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// AccessToken extracts the token triple carried by a submit or end-turn
// request.
func (m ClientMessage) AccessToken() match.AccessToken {
	return match.AccessToken{UserID: m.UserID, Token: m.Token, Action: m.Action}
}

// AccessTokenFrame answers requestToAct and submitAction.
type AccessTokenFrame struct {
	Ver     int            `json:"ver"`
	Type    string         `json:"type"`
	UserID  int64          `json:"userId"`
	Allowed bool           `json:"allowed"`
	Token   string         `json:"token,omitempty"`
	Action  *action.Action `json:"action,omitempty"`
}

// NewAccessTokenFrame wraps a protocol response.
func NewAccessTokenFrame(tok match.AccessToken) AccessTokenFrame {
	return AccessTokenFrame{
		Ver:     Version,
		Type:    typeAccessToken,
		UserID:  tok.UserID,
		Allowed: tok.Allowed,
		Token:   tok.Token,
		Action:  tok.Action,
	}
}

// EndTurnAck answers requestEndTurn.
type EndTurnAck struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
	Ended  bool   `json:"ended"`
}

// NewEndTurnAck wraps the end-turn outcome.
func NewEndTurnAck(userID int64, ended bool) EndTurnAck {
	return EndTurnAck{Ver: Version, Type: typeEndTurnAck, UserID: userID, Ended: ended}
}

// StateFrame carries a full snapshot.
type StateFrame struct {
	Ver      int            `json:"ver"`
	Type     string         `json:"type"`
	Snapshot match.Snapshot `json:"snapshot"`
	Resync   bool           `json:"resync,omitempty"`
}

// NewStateFrame wraps snap.
func NewStateFrame(snap match.Snapshot, resync bool) StateFrame {
	return StateFrame{Ver: Version, Type: typeState, Snapshot: snap, Resync: resync}
}

// EventFrame carries one match event to observers.
type EventFrame struct {
	Ver      int          `json:"ver"`
	Type     string       `json:"type"`
	Sequence uint64       `json:"sequence"`
	Event    events.Event `json:"event"`
}

// NewEventFrame wraps event. Sequence is the journal sequence the event
// was published at.
func NewEventFrame(event events.Event, sequence uint64) EventFrame {
	return EventFrame{Ver: Version, Type: typeEvent, Sequence: sequence, Event: event}
}

// KeyframeFrame answers a keyframe request.
type KeyframeFrame struct {
	Ver      int            `json:"ver"`
	Type     string         `json:"type"`
	Sequence uint64         `json:"sequence"`
	Turn     uint64         `json:"turn"`
	Snapshot match.Snapshot `json:"snapshot"`
}

// NewKeyframeFrame wraps a recorded keyframe.
func NewKeyframeFrame(sequence, turn uint64, snap match.Snapshot) KeyframeFrame {
	return KeyframeFrame{Ver: Version, Type: typeKeyframe, Sequence: sequence, Turn: turn, Snapshot: snap}
}

// KeyframeNack reports a keyframe that is no longer retained.
type KeyframeNack struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence"`
	Reason   string `json:"reason"`
	Resync   bool   `json:"resync,omitempty"`
}

// NewKeyframeNack builds a nack for sequence.
func NewKeyframeNack(sequence uint64, reason string) KeyframeNack {
	return KeyframeNack{Ver: Version, Type: typeKeyframeNack, Sequence: sequence, Reason: reason, Resync: true}
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// NewHeartbeat builds a heartbeat acknowledgement.
func NewHeartbeat(serverTime, clientTime int64) Heartbeat {
	rtt := int64(0)
	if clientTime > 0 && serverTime >= clientTime {
		rtt = serverTime - clientTime
	}
	return Heartbeat{Ver: Version, Type: typeHeartbeat, ServerTime: serverTime, ClientTime: clientTime, RTTMillis: rtt}
}

// JoinRequest asks the hub to add a combatant.
type JoinRequest struct {
	Name     string `json:"name"`
	Team     string `json:"team"`
	Template string `json:"template"`
	Bot      bool   `json:"bot,omitempty"`
	Q        *int   `json:"q,omitempty"`
	R        *int   `json:"r,omitempty"`
}

// JoinResponse returns the new combatant id with the current state.
type JoinResponse struct {
	Ver      int            `json:"ver"`
	Type     string         `json:"type"`
	ID       int64          `json:"id"`
	MatchID  string         `json:"matchId"`
	Snapshot match.Snapshot `json:"snapshot"`
}

// NewJoinResponse builds a join response.
func NewJoinResponse(id int64, snap match.Snapshot) JoinResponse {
	return JoinResponse{Ver: Version, Type: typeJoin, ID: id, MatchID: snap.MatchID, Snapshot: snap}
}
