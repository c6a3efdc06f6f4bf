package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"slidecast/internal/app"
)

// WSHandler upgrades client connections and dispatches their events into the
// session.
type WSHandler struct {
	session  *app.Session
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWSHandler wires the websocket endpoint. An empty allowedOrigins permits
// all origins (development mode).
func NewWSHandler(session *app.Session, hub *Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		session: session,
		hub:     hub,
		log:     log.With().Str("component", "ws_handler").Logger(),
		upgrader: websocket.Upgrader{
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
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type startTimerPayload struct {
	Seconds int `json:"seconds"`
}

type answerPayload struct {
	Value json.RawMessage `json:"value"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the read loop. The connection's role
// is decided by its first presenter-connect or player-join event.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{
		id:   uuid.NewString(),
		send: make(chan outboundMessage, 32),
	}
	h.hub.add(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("conn_id", c.id).Msg("ws write error")
				return
			}
		}
	}()

	h.readLoop(r, conn, c)

	if wasPlayer := h.hub.remove(c.id); wasPlayer {
		h.session.Disconnect(c.id)
	}
	<-writerDone
}

func (h *WSHandler) readLoop(r *http.Request, conn *websocket.Conn, c *client) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("conn_id", c.id).Msg("unexpected close")
			}
			return
		}

		switch inbound.Type {
		case "presenter-connect":
			h.hub.setRole(c.id, rolePresenter)
			h.session.PresenterConnect(c.id)

		case "player-join":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(c, "invalid join payload")
				continue
			}
			h.hub.setRole(c.id, rolePlayer)
			h.session.Join(c.id, payload.Name, payload.Avatar)

		case "start-quiz":
			if err := h.session.Start(r.Context()); err != nil {
				h.log.Error().Err(err).Msg("quiz start failed")
				h.sendError(c, err.Error())
			}

		case "next-slide":
			h.session.Next()

		case "prev-slide":
			h.session.Prev()

		case "start-timer":
			var payload startTimerPayload
			// A missing payload arms the slide's own limit.
			_ = json.Unmarshal(inbound.Payload, &payload)
			h.session.StartTimer(payload.Seconds)

		case "submit-answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(c, "invalid answer payload")
				continue
			}
			h.session.SubmitAnswer(c.id, payload.Value)

		case "get-leaderboard":
			h.session.RequestLeaderboard(c.id)

		case "reset-quiz":
			h.session.Reset()

		default:
			h.sendError(c, "unsupported message type")
		}
	}
}

func (h *WSHandler) sendError(c *client, message string) {
	h.hub.ToConn(c.id, "error", errorPayload{Message: message})
}
