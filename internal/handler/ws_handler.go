package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/realtime"
	"github.com/stemsi/ielts-mock/internal/response"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/session"
	ws "github.com/stemsi/ielts-mock/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a candidate's session over WebSocket.
type WSHandler struct {
	hub            *realtime.Hub
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. hub may be nil, in which case only
// replies to client actions are sent.
func NewWSHandler(hub *realtime.Hub, sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:            hub,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidates/:candidate_id/session/stream
// Connecting counts as a page load. Closing the socket without finishing
// unloads the session so it can be resumed.
func (h *WSHandler) SessionStream(c *gin.Context) {
	cid, ok := candidateParam(c)
	if !ok {
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("candidate_id", cid).Logger()
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before loading so the first tick is not missed.
	if h.hub != nil {
		sub, err := h.hub.Subscribe(ctx, cid)
		if err != nil {
			wsLog.Error().Err(err).Msg("Event subscription failed")
			conn.WriteError("live timer unavailable")
			return
		}
		defer sub.Close()
		go h.forward(conn, sub, wsLog)
	}

	st, err := h.sessionService.Load(ctx, cid)
	if err != nil {
		wsLog.Error().Err(err).Msg("Session load failed")
		conn.WriteError("session unavailable")
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: st})
	wsLog.Info().Str("section", string(st.CurrentSection)).Msg("Candidate connected")

	finalized := false
	for !finalized {
		data, err := conn.ReadRaw()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			conn.WriteError(string(response.ErrInvalidPayload))
			continue
		}

		switch env.Action {
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, cid, data)
		case ws.ActionSubSection:
			h.handleSubSection(ctx, conn, cid, data)
		case ws.ActionAdvance:
			finalized = h.handleAdvance(ctx, conn, cid)
		case ws.ActionFinish:
			finalized = h.handleFinish(ctx, conn, cid)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(env.Action))
		}
	}

	if finalized {
		return
	}

	// The request context is gone once the peer hangs up.
	res, err := h.sessionService.Unload(context.WithoutCancel(ctx), cid)
	switch {
	case err == nil:
		wsLog.Info().Bool("result_recorded", res.Result != nil).Msg("Session unloaded on disconnect")
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionClosed):
	default:
		wsLog.Error().Err(err).Msg("Unload on disconnect failed")
	}
}

func (h *WSHandler) forward(conn *ws.Conn, sub *realtime.Subscription, log zerolog.Logger) {
	for ev := range sub.Events() {
		if err := conn.WriteTyped(ws.SessionEventResponse{Event: ws.EventSession, Data: ev}); err != nil {
			log.Debug().Err(err).Msg("Event write failed")
			return
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *ws.Conn, cid string, data []byte) {
	var req ws.AutosaveRequest
	if err := json.Unmarshal(data, &req); err != nil || !req.Section.Valid() || len(req.Answers) == 0 {
		conn.WriteError("section and answers are required")
		return
	}

	st, err := h.sessionService.SaveAnswers(ctx, cid, model.SaveAnswersRequest{Section: req.Section, Answers: req.Answers})
	if err != nil {
		h.writeServiceError(conn, err)
		return
	}
	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, RemainingSeconds: st.RemainingSeconds})
}

func (h *WSHandler) handleSubSection(ctx context.Context, conn *ws.Conn, cid string, data []byte) {
	var req ws.SubSectionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		conn.WriteError("index is required")
		return
	}

	st, err := h.sessionService.SetSubSection(ctx, cid, req.Index)
	if err != nil {
		h.writeServiceError(conn, err)
		return
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: st})
}

func (h *WSHandler) handleAdvance(ctx context.Context, conn *ws.Conn, cid string) bool {
	st, res, err := h.sessionService.Advance(ctx, cid)
	if err != nil {
		h.writeServiceError(conn, err)
		return false
	}
	if res != nil {
		conn.WriteTyped(ws.FinalizedResponse{Event: ws.EventFinalized, Result: res})
		return true
	}
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: st})
	return false
}

func (h *WSHandler) handleFinish(ctx context.Context, conn *ws.Conn, cid string) bool {
	res, err := h.sessionService.Finish(ctx, cid)
	if err != nil {
		h.writeServiceError(conn, err)
		return errors.Is(err, session.ErrSessionClosed)
	}
	conn.WriteTyped(ws.FinalizedResponse{Event: ws.EventFinalized, Result: res})
	return true
}

func (h *WSHandler) writeServiceError(conn *ws.Conn, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			conn.WriteError(string(m.code))
			return
		}
	}
	h.log.Error().Err(err).Msg("Session action failed")
	conn.WriteError(string(response.ErrInternal))
}
