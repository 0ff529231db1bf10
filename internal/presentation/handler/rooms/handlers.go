package rooms

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/clock"
	"github.com/hilthontt/tourchat/internal/infrastructure/json"
	"github.com/hilthontt/tourchat/internal/presentation/utils"
)

type Handler struct {
	chat  *chat.Service
	clock clock.Clock
}

func NewHandler(chatService *chat.Service, c clock.Clock) *Handler {
	if c == nil {
		c = clock.Real()
	}
	return &Handler{
		chat:  chatService,
		clock: c,
	}
}

// CreateRoomHandler gets or creates the room of an area. Creation needs an identity;
// joining an existing room does not.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	identity := utils.GetIdentity(r)
	room, err := h.chat.GetOrCreateRoom(r.Context(), req.AreaID, req.AreaName, identity)
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	_ = json.Write(w, http.StatusOK, h.response(room, identity))
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := h.chat.GetRoom(r.Context(), chi.URLParam(r, "areaId"))
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	_ = json.Write(w, http.StatusOK, h.response(room, utils.GetIdentity(r)))
}

// GetAuditHandler lists the newest audit entries of a room for its admins.
func (h *Handler) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			json.WriteBadRequestError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	areaID := chi.URLParam(r, "areaId")
	entries, err := h.chat.RecentActivity(r.Context(), areaID, utils.GetIdentity(r), limit)
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.RoomAuditLog{}
	}

	id, _ := domain.SanitizeAreaID(areaID)
	_ = json.Write(w, http.StatusOK, auditResponse{RoomID: id, Entries: entries})
}

func (h *Handler) response(room *domain.Room, identity *domain.Identity) roomResponse {
	resp := roomResponse{Room: room}
	if !identity.Authenticated() {
		return resp
	}

	you := &roleResponse{
		Role:          domain.EffectiveRole(room, identity.ID).String(),
		IsAdmin:       room.IsAdmin(identity.ID),
		IsMasterAdmin: room.IsMasterAdmin(identity.ID),
		IsBanned:      room.IsBanned(identity.ID),
	}
	if kick, ok := room.ActiveKick(identity.ID, h.clock.Now()); ok {
		until := kick.ExpiresAt
		you.KickedUntil = &until
	}
	resp.You = you
	return resp
}
