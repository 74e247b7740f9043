package ws

import (
	"log"
	nethttp "net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"hexclash/server/internal/hub"
	"hexclash/server/internal/net/proto"
)

type HandlerConfig struct {
	Logger *log.Logger
}

type Handler struct {
	hub      *hub.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      h,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and runs the session for the combatant named
// by the id query parameter. The format parameter (json or msgpack) picks
// the session codec; the Accept header is consulted when it is absent.
// The id is trusted as given; authenticating the caller is left to whatever
// fronts the server.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		nethttp.Error(w, "invalid id", nethttp.StatusBadRequest)
		return
	}

	codec := proto.Negotiate(r.Header.Get("Accept"), h.hub.Codec())
	if raw := r.URL.Query().Get("format"); raw != "" {
		format, ok := proto.ParseFormat(raw)
		if !ok {
			nethttp.Error(w, "unknown format", nethttp.StatusBadRequest)
			return
		}
		codec, _ = proto.CodecFor(format)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %d: %v", id, err)
		return
	}

	h.Serve(r.Context(), id, conn, codec)
}
