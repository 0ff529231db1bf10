package moderation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/json"
	"github.com/hilthontt/tourchat/internal/infrastructure/ws"
	core "github.com/hilthontt/tourchat/internal/moderation"
	"github.com/hilthontt/tourchat/internal/presentation/utils"
)

// Evictor closes the live feeds a user holds in a room.
type Evictor interface {
	Evict(areaID, actorID string, frame ws.Frame) int
}

type Handler struct {
	chat  *chat.Service
	feeds Evictor
}

func NewHandler(chatService *chat.Service, feeds Evictor) *Handler {
	return &Handler{
		chat:  chatService,
		feeds: feeds,
	}
}

// ModerateHandler applies one of promote, demote, ban, unban, kick, add-master or
// remove-master to the target. A banned user loses their open feeds.
func (h *Handler) ModerateHandler(w http.ResponseWriter, r *http.Request) {
	action, ok := core.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		json.WriteError(w, http.StatusNotFound, errors.New("unknown action"), "Unknown moderation action")
		return
	}

	var req moderationRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	target := strings.TrimSpace(req.Target)

	areaID := chi.URLParam(r, "areaId")
	if err := h.chat.Moderate(r.Context(), action, areaID, utils.GetIdentity(r), target); err != nil {
		json.WriteDomainError(w, err)
		return
	}

	resp := moderationResponse{Action: action.String(), Target: target}
	if action == core.ActionBanUser && h.feeds != nil {
		// The area id is valid once Moderate succeeded.
		id, _ := domain.SanitizeAreaID(areaID)
		frame := ws.NewErrorFrame(id, domain.ReasonActorBanned, domain.ReasonActorBanned.Message())
		resp.Evicted = h.feeds.Evict(id, target, frame)
	}

	_ = json.Write(w, http.StatusOK, resp)
}
