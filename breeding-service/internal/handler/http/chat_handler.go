package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
)

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type MessagesResponse struct {
	RoomID   uuid.UUID      `json:"room_id"`
	Messages []chat.Message `json:"messages"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type ChatHandler struct {
	service  chat.Service
	validate *validator.Validate
}

func NewChatHandler(service chat.Service) *ChatHandler {
	return &ChatHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ChatHandler) RegisterRoutes(router chi.Router) {
	router.Post("/breeding/matches/{id}/chat", h.handleOpenRoom)
	router.Get("/chat/rooms/{id}/messages", h.handleListMessages)
	router.Post("/chat/rooms/{id}/messages", h.handleSendMessage)
	router.Post("/chat/rooms/{id}/read", h.handleMarkRead)
}

func (h *ChatHandler) handleOpenRoom(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	room, err := h.service.GetOrCreateRoom(r.Context(), viewerID, matchID)
	if err != nil {
		respondWithServiceError(w, err, "Could not create chat")
		return
	}

	respondWithJSON(w, http.StatusOK, room)
}

func (h *ChatHandler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	messages, err := h.service.LoadMessages(r.Context(), viewerID, roomID)
	if err != nil {
		respondWithServiceError(w, err, "Could not load messages")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}

	respondWithJSON(w, http.StatusOK, MessagesResponse{RoomID: roomID, Messages: messages})
}

func (h *ChatHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var requestPayload SendMessageRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), roomID, senderID, requestPayload.Message)
	if err != nil {
		respondWithServiceError(w, err, "Could not send message")
		return
	}

	respondWithJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	n, err := h.service.MarkRead(r.Context(), viewerID, roomID)
	if err != nil {
		respondWithServiceError(w, err, "Could not mark messages as read")
		return
	}

	respondWithJSON(w, http.StatusOK, MarkReadResponse{Updated: n})
}
