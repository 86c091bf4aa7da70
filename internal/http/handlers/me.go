package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxMatchesLimit = 100

func (h *Handler) Me(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"player": player,
		"queue":  h.Lobby.Status(player),
	})
}

// MyMatches lists the caller's matches, newest first.
func (h *Handler) MyMatches(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}

	limit := h.cfg.MatchesLimit
	if limit <= 0 {
		limit = 20
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondBadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxMatchesLimit {
		limit = maxMatchesLimit
	}

	matches, err := h.Matches.ListMatches(c.Request.Context(), player, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
