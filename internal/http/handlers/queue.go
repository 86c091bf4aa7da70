package handlers

import (
	"net/http"

	"rps_arena/internal/domain"

	"github.com/gin-gonic/gin"
)

type QueueRequest struct {
	Stake  string `json:"stake" binding:"required"`
	BestOf int    `json:"best_of"`
}

// JoinQueue pairs the caller with the oldest waiting player of the same tier and format.
func (h *Handler) JoinQueue(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	var req QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "stake is required")
		return
	}
	if req.BestOf == 0 {
		req.BestOf = h.defaultBestOf()
	}

	ticket, err := h.Lobby.Join(c.Request.Context(), player, domain.StakeTier(req.Stake), req.BestOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) QueueStatus(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Lobby.Status(player))
}

func (h *Handler) LeaveQueue(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": h.Lobby.Leave(player)})
}

func (h *Handler) defaultBestOf() int {
	if h.cfg.DefaultBestOf > 0 {
		return h.cfg.DefaultBestOf
	}
	return 3
}
