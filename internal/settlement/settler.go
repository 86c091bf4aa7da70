package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rps_arena/internal/game"
	"rps_arena/internal/logger"
)

// Settler hands a doubly signed result to the payout layer.
type Settler interface {
	Settle(ctx context.Context, p *game.SettlementPayload) error
}

// HTTPSettler posts payloads as JSON to the settlement service.
type HTTPSettler struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewHTTPSettler(url, token string) *HTTPSettler {
	return &HTTPSettler{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (s *HTTPSettler) Settle(ctx context.Context, p *game.SettlementPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.Record.MatchID)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("settlement request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the service already holds this match.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("settlement service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// LogSettler only logs payloads. Used when no settlement service is configured.
type LogSettler struct{}

func (LogSettler) Settle(ctx context.Context, p *game.SettlementPayload) error {
	logger.Info("settlement payload ready",
		"match_id", p.Record.MatchID,
		"winner", p.Record.Winner,
		"stake", p.Record.Stake,
		"digest", p.Digest.String(),
	)
	return nil
}
