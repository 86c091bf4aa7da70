package game

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
)

// SettlementPayload is handed to the settlement collaborator once both players signed.
type SettlementPayload struct {
	Record     ResultRecord `json:"record"`
	Digest     HexBytes     `json:"digest"`
	Signature1 string       `json:"signature1"`
	Signature2 string       `json:"signature2"`
}

// VerifyResultSignature checks that player signed the record digest with their key.
func VerifyResultSignature(player domain.PlayerID, rec *ResultRecord, sigHex string) error {
	pub, err := crypto.PubKeyFromHex(string(player))
	if err != nil {
		return fmt.Errorf("%w: player key: %v", ErrInvalidSignature, err)
	}
	if err := crypto.Verify(pub, rec.Digest(), sigHex); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// NormalizeSignature returns the lowercase hex form of an ed25519 signature, accepting an
// optional 0x prefix.
func NormalizeSignature(sigHex string) (string, error) {
	raw, err := crypto.DecodeHex(sigHex)
	if err != nil {
		return "", fmt.Errorf("%w: signature is not hex", ErrInvalidSignature)
	}
	if len(raw) != ed25519.SignatureSize {
		return "", fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, ed25519.SignatureSize, len(raw))
	}
	return hex.EncodeToString(raw), nil
}

// BuildPayload assembles the settlement payload; NotReady unless both signatures exist.
func BuildPayload(m *domain.Match, rounds []*domain.Round) (*SettlementPayload, error) {
	if !m.HasBothSignatures() {
		return nil, fmt.Errorf("%w: match %s is missing signatures", ErrNotReady, m.ID)
	}
	rec, err := BuildResult(m, rounds)
	if err != nil {
		return nil, err
	}
	return &SettlementPayload{
		Record:     *rec,
		Digest:     rec.Digest(),
		Signature1: m.Signature1,
		Signature2: m.Signature2,
	}, nil
}
