package net

import (
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"hexclash/server/internal/catalog"
	"hexclash/server/internal/hub"
	"hexclash/server/internal/match"
	"hexclash/server/internal/net/intake"
	"hexclash/server/internal/net/proto"
	"hexclash/server/internal/net/ws"
	"hexclash/server/internal/observability"
)

const maxBodyBytes = 1 << 16

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        *log.Logger
	Observability observability.Config
}

type diagnosticsResponse struct {
	Status     string          `json:"status"`
	ServerTime int64           `json:"serverTime"`
	Hub        hub.Diagnostics `json:"hub"`
}

type leaveResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

// NewHTTPHandler routes the match protocol, the join flow and the
// websocket endpoint. Every body and response honours the negotiated codec.
func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeFrame(w, r, h.Codec(), nethttp.StatusOK, diagnosticsResponse{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Hub:        h.Diagnostics(),
		})
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		codec, body, ok := readBody(w, r, h.Codec())
		if !ok {
			return
		}
		var req proto.JoinRequest
		if err := codec.Unmarshal(body, &req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		resp, err := h.Join(r.Context(), req)
		if err != nil {
			logger.Printf("join failed: %v", err)
			httpError(w, err.Error(), joinStatus(err))
			return
		}
		writeFrame(w, r, codec, nethttp.StatusOK, resp)
	}).Methods(nethttp.MethodPost)

	api := router.PathPrefix("/match").Subrouter()
	for _, msgType := range []string{proto.TypeRequestToAct, proto.TypeSubmitAction, proto.TypeRequestEndTurn, proto.TypeRequestStateSync} {
		api.HandleFunc("/"+msgType, protocolHandler(h, logger, msgType)).Methods(nethttp.MethodPost)
	}

	api.HandleFunc("/state", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeFrame(w, r, h.Codec(), nethttp.StatusOK, proto.NewStateFrame(h.RequestStateSync(), false))
	}).Methods(nethttp.MethodGet)

	api.HandleFunc("/resubscribe", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeFrame(w, r, h.Codec(), nethttp.StatusOK, proto.NewStateFrame(h.RequestStateSync(), true))
	}).Methods(nethttp.MethodPost)

	api.HandleFunc("/keyframes/{seq:[0-9]+}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		seq, err := strconv.ParseUint(mux.Vars(r)["seq"], 10, 64)
		if err != nil {
			httpError(w, "invalid sequence", nethttp.StatusBadRequest)
			return
		}
		frame, nack := h.Keyframe(seq)
		if nack != nil {
			writeFrame(w, r, h.Codec(), nethttp.StatusGone, *nack)
			return
		}
		writeFrame(w, r, h.Codec(), nethttp.StatusOK, frame)
	}).Methods(nethttp.MethodGet)

	api.HandleFunc("/combatants/{id:[0-9]+}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			httpError(w, "invalid id", nethttp.StatusBadRequest)
			return
		}
		if err := h.Leave(r.Context(), id); err != nil {
			if errors.Is(err, match.ErrUnknownCombatant) {
				httpError(w, "unknown combatant", nethttp.StatusNotFound)
				return
			}
			httpError(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		writeFrame(w, r, h.Codec(), nethttp.StatusOK, leaveResponse{Status: "ok", ID: id})
	}).Methods(nethttp.MethodDelete)

	router.HandleFunc("/ws", ws.NewHandler(h, ws.HandlerConfig{Logger: logger}).Handle)

	if observability.Mount(router, cfg.Observability) {
		logger.Printf("pprof endpoints mounted under /debug/pprof")
	}

	if cfg.ClientDir != "" {
		router.PathPrefix("/").Handler(nethttp.FileServer(nethttp.Dir(cfg.ClientDir)))
	}

	return router
}

// protocolHandler serves one client request type over HTTP. The body is a
// client message; its type field is implied by the route. The userId it
// carries is trusted as given.
func protocolHandler(h *hub.Hub, logger *log.Logger, msgType string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		codec, body, ok := readBody(w, r, h.Codec())
		if !ok {
			return
		}
		msg := proto.ClientMessage{Ver: proto.Version}
		if len(body) > 0 {
			decoded, err := proto.DecodeClientMessage(codec, body)
			if err != nil {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			msg = decoded
		}
		msg.Type = msgType

		frame, err := intake.Handle(r.Context(), intake.Context{Requests: h}, msg)
		if err != nil {
			logger.Printf("%s failed: %v", msgType, err)
			httpError(w, "invalid request", nethttp.StatusBadRequest)
			return
		}
		writeFrame(w, r, codec, nethttp.StatusOK, frame)
	}
}

// readBody reads a bounded request body and picks the codec named by its
// Content-Type.
func readBody(w nethttp.ResponseWriter, r *nethttp.Request, fallback proto.Codec) (proto.Codec, []byte, bool) {
	codec := proto.Negotiate(r.Header.Get("Content-Type"), fallback)
	if r.Body == nil {
		return codec, nil, true
	}
	defer r.Body.Close()
	body, err := io.ReadAll(nethttp.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return nil, nil, false
	}
	return codec, body, true
}

// writeFrame encodes payload with the codec the Accept header asks for,
// defaulting to fallback.
func writeFrame(w nethttp.ResponseWriter, r *nethttp.Request, fallback proto.Codec, status int, payload any) {
	codec := proto.Negotiate(r.Header.Get("Accept"), fallback)
	data, err := codec.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentType())
	w.WriteHeader(status)
	w.Write(data)
}

func joinStatus(err error) int {
	switch {
	case errors.Is(err, hub.ErrMissingTemplate), errors.Is(err, catalog.ErrUnknownTemplate):
		return nethttp.StatusBadRequest
	case errors.Is(err, match.ErrFinished), errors.Is(err, match.ErrNoSpawn), errors.Is(err, match.ErrDuplicateCombatant):
		return nethttp.StatusConflict
	}
	return nethttp.StatusInternalServerError
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
