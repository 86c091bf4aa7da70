package handlers

import (
	"net/http"

	"rps_arena/internal/game"
	"rps_arena/internal/logger"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[game.Kind]int{
	game.KindBadRequest:       http.StatusBadRequest,
	game.KindForbidden:        http.StatusForbidden,
	game.KindNotFound:         http.StatusNotFound,
	game.KindInvalidPhase:     http.StatusConflict,
	game.KindAlreadyCommitted: http.StatusConflict,
	game.KindAlreadyRevealed:  http.StatusConflict,
	game.KindCommitMismatch:   http.StatusUnprocessableEntity,
	game.KindDeadlinePassed:   http.StatusConflict,
	game.KindNotReady:         http.StatusConflict,
	game.KindInvalidSignature: http.StatusUnprocessableEntity,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind game.Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	kind := game.KindOf(err)
	code := StatusFor(kind)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", "route", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.JSON(code, gin.H{"error": kind, "message": msg})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": game.KindBadRequest, "message": msg})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "player not found in context"})
}
