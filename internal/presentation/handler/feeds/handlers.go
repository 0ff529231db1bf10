package feeds

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/tourchat/internal/chat"
	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/json"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/infrastructure/ws"
	"github.com/hilthontt/tourchat/internal/presentation/utils"
)

type Handler struct {
	chat     *chat.Service
	hub      *ws.Hub
	upgrader websocket.Upgrader
	cfg      ws.Config
	logger   logging.Logger
}

func NewHandler(chatService *chat.Service, hub *ws.Hub, allowedOrigins []string, cfg ws.Config, logger logging.Logger) *Handler {
	return &Handler{
		chat: chatService,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ServeFeed upgrades to a websocket that receives the room's current messages, oldest
// first, every time they change. Anonymous visitors may read; banned users may not.
func (h *Handler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := utils.GetIdentity(r)

	room, err := h.chat.GetRoom(ctx, chi.URLParam(r, "areaId"))
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}
	actorID := ""
	if identity.Authenticated() {
		if room.IsBanned(identity.ID) {
			json.WriteDomainError(w, domain.Denied(domain.ReasonActorBanned))
			return
		}
		actorID = identity.ID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the request.
		h.logger.Warn(logging.RequestResponse, logging.Subscription, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.AreaID:       room.AreaID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	cl := ws.NewClient(conn, room.AreaID, actorID, h.cfg, h.logger)
	if err := h.hub.Add(cl); err != nil {
		cl.Close(websocket.CloseTryAgainLater, "server shutting down")
		return
	}
	defer h.hub.Remove(cl)

	session := h.chat.Session()
	defer session.Close()

	unsubscribe, err := session.SubscribeToMessages(ctx, room.AreaID, func(batch []domain.Message) {
		cl.Push(ws.NewMessagesFrame(room.AreaID, batch))
	})
	if err != nil {
		h.logger.Error(logging.Chat, logging.Subscription, "failed to open message feed", map[logging.ExtraKey]any{
			logging.AreaID:       room.AreaID,
			logging.ErrorMessage: err.Error(),
		})
		cl.Close(websocket.CloseInternalServerErr, "feed unavailable")
		return
	}
	defer unsubscribe()

	h.logger.Debug(logging.RequestResponse, logging.Subscription, "feed connected", map[logging.ExtraKey]any{
		logging.AreaID: room.AreaID,
		logging.Actor:  actorID,
		logging.Count:  h.hub.Count(room.AreaID),
	})
	cl.Run(ctx)
}
