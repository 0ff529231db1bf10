package tours

import (
	"net/http"

	"github.com/hilthontt/tourchat/internal/infrastructure/json"
	"github.com/hilthontt/tourchat/internal/presentation/utils"
	"github.com/hilthontt/tourchat/internal/tour"
)

type Handler struct {
	orchestrator *tour.Orchestrator
}

func NewHandler(orchestrator *tour.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// CreateTourHandler runs a whole tour and returns it in one response. The destination's
// chat room is opened on the caller's behalf.
func (h *Handler) CreateTourHandler(w http.ResponseWriter, r *http.Request) {
	var req createTourRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	result, err := h.orchestrator.Run(r.Context(), req.Destination, utils.GetIdentity(r), nil)
	if err != nil {
		json.WriteDomainError(w, err)
		return
	}

	_ = json.Write(w, http.StatusOK, result)
}
