package ws

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"hexclash/server/internal/net/intake"
	"hexclash/server/internal/net/proto"
)

// Serve runs a websocket session for combatant id. The session receives
// every broadcast frame and may send the same requests the HTTP routes
// accept; requests are answered on the same socket.
func (h *Handler) Serve(ctx context.Context, id int64, conn *websocket.Conn, codec proto.Codec) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	sub, err := h.hub.Subscribe(id, conn, codec)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown combatant")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	if _, err := sub.Send(proto.NewStateFrame(h.hub.RequestStateSync(), true)); err != nil {
		h.logger.Printf("failed to send initial state to %d: %v", id, err)
		return
	}

	dispatch := intake.Context{Requests: h.hub, Bound: id}
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := proto.DecodeClientMessage(sub.Codec(), payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %d: %v", id, err)
			continue
		}

		frame, err := intake.Handle(ctx, dispatch, msg)
		if err != nil {
			if errors.Is(err, intake.ErrUnknownType) {
				h.logger.Printf("unknown message %q from %d", msg.Type, id)
			} else {
				h.logger.Printf("message %q from %d: %v", msg.Type, id, err)
			}
			continue
		}
		if _, err := sub.Send(frame); err != nil {
			h.logger.Printf("failed to answer %d: %v", id, err)
			return
		}
	}
}
