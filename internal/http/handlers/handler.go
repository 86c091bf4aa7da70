package handlers

import (
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/lobby"
	"rps_arena/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// HandlerConfig holds configuration for handler
type HandlerConfig struct {
	AuthMaxSkew   time.Duration
	DefaultBestOf int
	MatchesLimit  int
}

type Handler struct {
	Matches *service.MatchService
	Lobby   *lobby.Lobby
	Clock   clockwork.Clock
	cfg     HandlerConfig
}

func NewHandler(matches *service.MatchService, lb *lobby.Lobby, clock clockwork.Clock, cfg HandlerConfig) *Handler {
	if cfg.AuthMaxSkew <= 0 {
		cfg.AuthMaxSkew = 5 * time.Minute
	}
	return &Handler{
		Matches: matches,
		Lobby:   lb,
		Clock:   clock,
		cfg:     cfg,
	}
}

// getPlayer извлекает игрока из контекста Gin
func getPlayer(c *gin.Context) (domain.PlayerID, bool) {
	p, ok := middleware.PlayerFrom(c)
	if !ok {
		respondUnauthorized(c)
	}
	return p, ok
}
