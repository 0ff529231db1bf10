package rooms

import (
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
)

type createRoomRequest struct {
	AreaID   string `json:"areaId"`
	AreaName string `json:"areaName"`
}

type roleResponse struct {
	Role          string     `json:"role"`
	IsAdmin       bool       `json:"isAdmin"`
	IsMasterAdmin bool       `json:"isMasterAdmin"`
	IsBanned      bool       `json:"isBanned"`
	KickedUntil   *time.Time `json:"kickedUntil,omitempty"`
}

type roomResponse struct {
	Room *domain.Room  `json:"room"`
	You  *roleResponse `json:"you,omitempty"`
}

type auditResponse struct {
	RoomID  string                `json:"roomId"`
	Entries []domain.RoomAuditLog `json:"entries"`
}
