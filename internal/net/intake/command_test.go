package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"hexclash/server/internal/action"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/match"
	"hexclash/server/internal/net/proto"
)

type fakeRequests struct {
	actor     int64
	submitted []match.AccessToken
	ended     []match.AccessToken
	keyframes map[uint64]match.Snapshot
}

func (f *fakeRequests) RequestToAct(_ context.Context, userID int64) match.AccessToken {
	if userID != f.actor {
		return match.AccessToken{UserID: userID}
	}
	return match.AccessToken{UserID: userID, Allowed: true, Token: "tok-1"}
}

func (f *fakeRequests) SubmitAction(_ context.Context, tok match.AccessToken) match.AccessToken {
	f.submitted = append(f.submitted, tok)
	if tok.Token != "tok-1" {
		return match.AccessToken{UserID: tok.UserID}
	}
	return match.AccessToken{UserID: tok.UserID, Allowed: true, Token: "tok-2", Action: tok.Action}
}

func (f *fakeRequests) RequestEndTurn(_ context.Context, tok match.AccessToken) bool {
	f.ended = append(f.ended, tok)
	return tok.UserID == f.actor && tok.Token != ""
}

func (f *fakeRequests) RequestStateSync() match.Snapshot {
	return match.Snapshot{MatchID: "m", Turn: 4}
}

func (f *fakeRequests) Keyframe(sequence uint64) (proto.KeyframeFrame, *proto.KeyframeNack) {
	snap, ok := f.keyframes[sequence]
	if !ok {
		nack := proto.NewKeyframeNack(sequence, "expired")
		return proto.KeyframeFrame{}, &nack
	}
	return proto.NewKeyframeFrame(sequence, snap.Turn, snap), nil
}

func TestHandleDispatchesByType(t *testing.T) {
	reqs := &fakeRequests{actor: 7, keyframes: map[uint64]match.Snapshot{3: {MatchID: "m", Turn: 2}}}
	c := Context{Requests: reqs, Now: func() time.Time { return time.UnixMilli(5_000) }}
	ctx := context.Background()
	move := action.NewMove(hex.NewCoord(0, 0), hex.NewCoord(1, 0))
	seq := uint64(3)
	missing := uint64(9)

	cases := []struct {
		name  string
		msg   proto.ClientMessage
		check func(t *testing.T, frame any)
	}{
		{"request to act", proto.ClientMessage{Type: proto.TypeRequestToAct, UserID: 7}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.AccessTokenFrame)
			if !ok || !f.Allowed || f.Token != "tok-1" {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
		{"submit", proto.ClientMessage{Type: proto.TypeSubmitAction, UserID: 7, Token: "tok-1", Action: &move}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.AccessTokenFrame)
			if !ok || f.Token != "tok-2" || f.Action == nil || f.Action.Kind != action.KindMove {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
		{"end turn", proto.ClientMessage{Type: proto.TypeRequestEndTurn, UserID: 7, Token: "tok-2", Action: &move}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.EndTurnAck)
			if !ok || !f.Ended {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
		{"state sync", proto.ClientMessage{Type: proto.TypeRequestStateSync}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.StateFrame)
			if !ok || f.Snapshot.Turn != 4 {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
		{"keyframe", proto.ClientMessage{Type: proto.TypeKeyframeReq, KeyframeSeq: &seq}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.KeyframeFrame)
			if !ok || f.Sequence != 3 || f.Turn != 2 {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
		{"expired keyframe", proto.ClientMessage{Type: proto.TypeKeyframeReq, KeyframeSeq: &missing}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.KeyframeNack)
			if !ok || !f.Resync || f.Sequence != 9 {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
		{"heartbeat", proto.ClientMessage{Type: proto.TypeHeartbeat, SentAt: 4_000}, func(t *testing.T, frame any) {
			f, ok := frame.(proto.Heartbeat)
			if !ok || f.RTTMillis != 1_000 {
				t.Fatalf("unexpected frame %+v", frame)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := Handle(ctx, c, tc.msg)
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			tc.check(t, frame)
		})
	}

	if len(reqs.ended) != 1 || reqs.ended[0].Action != nil {
		t.Fatalf("end turn should forward the token without an action: %+v", reqs.ended)
	}
}

func TestHandleErrors(t *testing.T) {
	c := Context{Requests: &fakeRequests{}}
	if _, err := Handle(context.Background(), c, proto.ClientMessage{Type: "dance"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := Handle(context.Background(), c, proto.ClientMessage{Type: proto.TypeKeyframeReq}); !errors.Is(err, ErrMissingSequence) {
		t.Fatalf("expected ErrMissingSequence, got %v", err)
	}
	if _, err := Handle(context.Background(), Context{}, proto.ClientMessage{Type: proto.TypeRequestToAct}); err == nil {
		t.Fatalf("expected an error without a request handler")
	}
}

func TestBoundSessionCannotSpeakForOthers(t *testing.T) {
	reqs := &fakeRequests{actor: 7}
	c := Context{Requests: reqs, Bound: 3}

	frame, err := Handle(context.Background(), c, proto.ClientMessage{Type: proto.TypeSubmitAction, UserID: 7, Token: "tok-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f, ok := frame.(proto.AccessTokenFrame); !ok || f.Allowed || f.Token != "" {
		t.Fatalf("expected a bare denial, got %+v", frame)
	}
	if len(reqs.submitted) != 0 {
		t.Fatalf("impersonated submit reached the hub")
	}

	frame, err = Handle(context.Background(), c, proto.ClientMessage{Type: proto.TypeRequestToAct})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f := frame.(proto.AccessTokenFrame); f.UserID != 3 || f.Allowed {
		t.Fatalf("expected the bound user to be used, got %+v", f)
	}
}
