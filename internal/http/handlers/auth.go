package handlers

import (
	"net/http"

	"rps_arena/internal/logger"
	"rps_arena/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Auth exchanges a signed, fresh challenge for a session token.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "public_key, timestamp and signature are required")
		return
	}
	if len(req.PublicKey) > 130 || len(req.Signature) > 130 {
		respondBadRequest(c, "field too long")
		return
	}

	player, ok := service.ValidatePlayerAuth(req.PublicKey, req.Timestamp, req.Signature, h.Clock.Now(), h.cfg.AuthMaxSkew)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid or stale signature"})
		return
	}

	token, err := service.GenerateJWT(player)
	if err != nil {
		logger.Error("token generation failed", "player", player, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"player": player,
	})
}
