package handlers

import (
	"net/http"
	"strconv"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"

	"github.com/gin-gonic/gin"
)

type CommitRequest struct {
	Digest game.HexBytes `json:"digest" binding:"required"`
}

type RevealRequest struct {
	Move string        `json:"move" binding:"required"`
	Salt game.HexBytes `json:"salt" binding:"required"`
}

type SignatureRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// GetMatch reconciles the match and returns the caller's snapshot.
func (h *Handler) GetMatch(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	snap, err := h.Matches.Snapshot(c.Request.Context(), c.Param("id"), player)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Heartbeat(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	changed, snap, err := h.Matches.Heartbeat(c.Request.Context(), c.Param("id"), player)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "snapshot": snap})
}

func (h *Handler) Commit(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	number, ok := roundParam(c)
	if !ok {
		return
	}
	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "digest must be a hex string")
		return
	}

	ctx := c.Request.Context()
	if err := h.Matches.SubmitCommit(ctx, c.Param("id"), number, player, req.Digest); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, player)
}

func (h *Handler) Reveal(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	number, ok := roundParam(c)
	if !ok {
		return
	}
	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "move and hex salt are required")
		return
	}
	move, err := domain.ParseMove(req.Move)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.Matches.SubmitReveal(ctx, c.Param("id"), number, player, move, req.Salt); err != nil {
		respondError(c, err)
		return
	}
	h.respondSnapshot(c, player)
}

// Result returns the record both players sign and the digest to sign.
func (h *Handler) Result(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	rec, err := h.Matches.ResultRecord(c.Request.Context(), c.Param("id"), player)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "digest": rec.Digest()})
}

func (h *Handler) Signature(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "signature is required")
		return
	}

	res, err := h.Matches.SubmitSignature(c.Request.Context(), c.Param("id"), player, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Settlement(c *gin.Context) {
	player, ok := getPlayer(c)
	if !ok {
		return
	}
	payload, err := h.Matches.SettlementPayload(c.Request.Context(), c.Param("id"), player)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) respondSnapshot(c *gin.Context, player domain.PlayerID) {
	snap, err := h.Matches.View(c.Request.Context(), c.Param("id"), player)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func roundParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		respondBadRequest(c, "round must be a positive integer")
		return 0, false
	}
	return n, true
}
