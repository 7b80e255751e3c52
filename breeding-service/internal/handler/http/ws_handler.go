package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 8 << 10
)

// Frame types on the room socket.
const (
	FrameHistory = "history"
	FrameMessage = "message"
	FrameSend    = "send"
	FrameError   = "error"
)

// Frame is the envelope for every websocket message in both directions.
type Frame struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages,omitempty"`
	Message  *chat.Message  `json:"message,omitempty"`
	Text     string         `json:"text,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type WebSocketHandler struct {
	service  chat.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from any origin when allowedOrigins
// is empty.
func NewWebSocketHandler(service chat.Service, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		if len(allowedOrigins) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}
	return h
}

func (h *WebSocketHandler) RegisterRoutes(router chi.Router) {
	router.Get("/chat/rooms/{id}/ws", h.handleRoomSocket)
}

// handleRoomSocket opens the session before upgrading so access errors are
// still plain HTTP answers.
func (h *WebSocketHandler) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.Open(r.Context(), viewerID, roomID)
	if err != nil {
		respondWithServiceError(w, err, "Could not load messages")
		return
	}
	defer session.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Stringer("room_id", roomID).Msg("Failed to upgrade chat socket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbox := make(chan Frame, 4)
	go h.readLoop(ctx, cancel, conn, session, viewerID, outbox)

	log.Info().Stringer("room_id", roomID).Stringer("user_id", viewerID).Msg("Chat socket opened")
	h.writeLoop(ctx, conn, session, outbox)
	log.Info().Stringer("room_id", roomID).Stringer("user_id", viewerID).Msg("Chat socket closed")
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *chat.Session, outbox <-chan Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(f Frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			log.Debug().Err(err).Msg("Chat socket write failed")
			return false
		}
		return true
	}

	if !write(Frame{Type: FrameHistory, Messages: session.History()}) {
		return
	}

	updates := session.Updates()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"), time.Now().Add(writeWait))
				return
			}
			if !write(Frame{Type: FrameMessage, Message: &msg}) {
				return
			}
		case f := <-outbox:
			if !write(f) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop handles inbound send frames until the client goes away. Sent
// messages come back through the session like everyone else's.
func (h *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, session *chat.Session, senderID uuid.UUID, outbox chan<- Frame) {
	defer cancel()

	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Stringer("room_id", session.RoomID).Msg("Chat socket closed unexpectedly")
			}
			return
		}

		var reply *Frame
		switch in.Type {
		case FrameSend:
			if _, err := h.service.SendMessage(ctx, session.RoomID, senderID, in.Text); err != nil {
				log.Warn().Err(err).Stringer("room_id", session.RoomID).Msg("Failed to send message from socket")
				reply = &Frame{Type: FrameError, Error: clientMessage(err, "Could not send message")}
			}
		default:
			reply = &Frame{Type: FrameError, Error: "unknown frame type"}
		}

		if reply != nil {
			select {
			case outbox <- *reply:
			case <-ctx.Done():
				return
			}
		}
	}
}
