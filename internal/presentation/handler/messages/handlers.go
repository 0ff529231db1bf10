package messages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/infrastructure/json"
	"github.com/hilthontt/tourchat/internal/presentation/utils"
)

type Handler struct {
	chat *chat.Service
}

func NewHandler(chatService *chat.Service) *Handler {
	return &Handler{chat: chatService}
}

func (h *Handler) CreateNewMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), chi.URLParam(r, "areaId"), req.Text, utils.GetIdentity(r))
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	_ = json.Write(w, http.StatusCreated, msg)
}

// DeleteMessageHandler removes a message. Admin tier only.
func (h *Handler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	err := h.chat.DeleteMessage(r.Context(), chi.URLParam(r, "areaId"), utils.GetIdentity(r), chi.URLParam(r, "messageId"))
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
