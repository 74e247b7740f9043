package proto

import (
	"encoding/json"
	"testing"

	"hexclash/server/internal/action"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/match"
)

func TestDecodeClientMessage(t *testing.T) {
	t.Run("submit with move", func(t *testing.T) {
		payload := []byte(`{"type":"submitAction","userId":7,"token":"abc","action":{"kind":"move","move":{"from":{"q":0,"r":0},"to":{"q":1,"r":0}}}}`)
		msg, err := DecodeClientMessage(JSON, payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Ver != Version {
			t.Fatalf("expected default version %d, got %d", Version, msg.Ver)
		}
		tok := msg.AccessToken()
		if tok.UserID != 7 || tok.Token != "abc" {
			t.Fatalf("unexpected token triple: %+v", tok)
		}
		if tok.Action == nil || tok.Action.Kind != action.KindMove || tok.Action.Move == nil {
			t.Fatalf("expected move action, got %+v", tok.Action)
		}
		if tok.Action.Move.To != hex.NewCoord(1, 0) {
			t.Fatalf("unexpected destination %s", tok.Action.Move.To)
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		if _, err := DecodeClientMessage(JSON, []byte(`{"ver":99,"type":"requestToAct"}`)); err == nil {
			t.Fatalf("expected version error")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := DecodeClientMessage(nil, []byte(`{`)); err == nil {
			t.Fatalf("expected decode error")
		}
	})
}

func TestAccessTokenFrameLayout(t *testing.T) {
	move := action.NewMove(hex.NewCoord(0, 0), hex.NewCoord(0, 1))
	frame := NewAccessTokenFrame(match.AccessToken{UserID: 3, Allowed: true, Token: "t", Action: &move})
	data, err := JSON.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != TypeAccessToken || decoded["allowed"] != true || decoded["token"] != "t" {
		t.Fatalf("unexpected frame: %s", data)
	}
	if decoded["userId"] != float64(3) {
		t.Fatalf("unexpected user id in %s", data)
	}

	denied, err := JSON.Marshal(NewAccessTokenFrame(match.AccessToken{UserID: 3}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded = nil
	if err := json.Unmarshal(denied, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["token"]; ok {
		t.Fatalf("denied frame carries a token: %s", denied)
	}
	if _, ok := decoded["action"]; ok {
		t.Fatalf("denied frame carries an action: %s", denied)
	}
}

func TestMsgpackSharesJSONFieldNames(t *testing.T) {
	occupant := int64(4)
	snap := match.Snapshot{
		MatchID: "m",
		Turn:    2,
		Grid: match.GridSnapshot{Radius: 1, Cells: []match.CellSnapshot{
			{Q: 0, R: 0, OccupantID: &occupant},
			{Q: 1, R: 0},
		}},
		Teams: []match.TeamSnapshot{{Name: "red", Members: []match.EntitySnapshot{{PlayerID: 4, HP: 30, Posture: 80}}}},
	}
	data, err := Msgpack.Marshal(NewStateFrame(snap, true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var generic map[string]any
	if err := Msgpack.Unmarshal(data, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	if generic["type"] != TypeState {
		t.Fatalf("expected json field names in msgpack frame, got %v", generic)
	}

	var frame StateFrame
	if err := Msgpack.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if !frame.Resync || frame.Snapshot.Turn != 2 {
		t.Fatalf("unexpected frame header: %+v", frame)
	}
	member, ok := frame.Snapshot.Entity(4)
	if !ok || member.HP != 30 || member.Posture != 80 {
		t.Fatalf("unexpected member: %+v", member)
	}
	cell, ok := frame.Snapshot.Cell(0, 0)
	if !ok || cell.OccupantID == nil || *cell.OccupantID != 4 {
		t.Fatalf("unexpected occupied cell: %+v", cell)
	}
	if vacant, _ := frame.Snapshot.Cell(1, 0); vacant.OccupantID != nil {
		t.Fatalf("vacant cell decoded with occupant %d", *vacant.OccupantID)
	}
}

func TestNegotiate(t *testing.T) {
	cases := []struct {
		header string
		want   Format
	}{
		{"application/msgpack", FormatMsgpack},
		{"application/json, text/plain", FormatJSON},
		{"", FormatJSON},
		{"*/*", FormatJSON},
	}
	for _, tc := range cases {
		if got := Negotiate(tc.header, JSON).Format(); got != tc.want {
			t.Fatalf("Negotiate(%q) = %s, want %s", tc.header, got, tc.want)
		}
	}
	if got := Negotiate("*/*", Msgpack).Format(); got != FormatMsgpack {
		t.Fatalf("expected fallback codec, got %s", got)
	}
	if _, ok := ParseFormat("MsgPack"); !ok {
		t.Fatalf("expected case-insensitive format parse")
	}
	if _, err := CodecFor("xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
