package game

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
)

const resultDomainTag = "rps-arena/result/v1"

// HexBytes marshals as a lowercase hex string.
type HexBytes []byte

func (h HexBytes) String() string { return hex.EncodeToString(h) }

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := crypto.DecodeHex(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// ResultRecord is the canonical summary of a decided match that both players sign.
type ResultRecord struct {
	MatchID          string           `json:"match_id"`
	Player1          domain.PlayerID  `json:"player1"`
	Player2          domain.PlayerID  `json:"player2"`
	Winner           domain.PlayerID  `json:"winner"` // empty for a draw
	Stake            domain.StakeTier `json:"stake"`
	BestOf           int              `json:"best_of"`
	Wins1            int              `json:"wins1"`
	Wins2            int              `json:"wins2"`
	TranscriptDigest HexBytes         `json:"transcript_digest"`
	Nonce            HexBytes         `json:"nonce"`
}

// BuildResult derives the record from the stored match and its rounds. It only depends on
// values that are frozen once the match is decided, so every caller gets the same bytes.
func BuildResult(m *domain.Match, rounds []*domain.Round) (*ResultRecord, error) {
	if m.IsActive() {
		return nil, fmt.Errorf("%w: match %s is not decided yet", ErrNotReady, m.ID)
	}
	return &ResultRecord{
		MatchID:          m.ID,
		Player1:          m.Player1,
		Player2:          m.Player2,
		Winner:           m.Winner,
		Stake:            m.Stake,
		BestOf:           m.BestOf,
		Wins1:            m.Wins1,
		Wins2:            m.Wins2,
		TranscriptDigest: TranscriptDigest(rounds),
		Nonce:            HexBytes(m.Nonce),
	}, nil
}

// TranscriptDigest hashes the resolved outcomes in round order:
// keccak256(for each resolved round: uint32 number || outcome code).
func TranscriptDigest(rounds []*domain.Round) HexBytes {
	resolved := make([]*domain.Round, 0, len(rounds))
	for _, r := range rounds {
		if r.IsResolved() {
			resolved = append(resolved, r)
		}
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Number < resolved[j].Number })

	buf := make([]byte, 0, len(resolved)*5)
	for _, r := range resolved {
		buf = binary.BigEndian.AppendUint32(buf, uint32(r.Number))
		buf = append(buf, outcomeCode(r.Outcome))
	}
	return crypto.Keccak256(buf)
}

func outcomeCode(o domain.Outcome) byte {
	switch o {
	case domain.OutcomePlayer1:
		return 1
	case domain.OutcomePlayer2:
		return 2
	case domain.OutcomeDraw:
		return 3
	default:
		return 0
	}
}

// Encode returns the canonical byte layout: domain tag, length-prefixed strings,
// big-endian uint32 integers, then the raw transcript digest and nonce.
func (r *ResultRecord) Encode() []byte {
	var buf bytes.Buffer
	writeString(&buf, resultDomainTag)
	writeString(&buf, r.MatchID)
	writeString(&buf, string(r.Player1))
	writeString(&buf, string(r.Player2))
	writeString(&buf, string(r.Winner))
	writeString(&buf, string(r.Stake))
	writeUint32(&buf, r.BestOf)
	writeUint32(&buf, r.Wins1)
	writeUint32(&buf, r.Wins2)
	writeBytes(&buf, r.TranscriptDigest)
	writeBytes(&buf, r.Nonce)
	return buf.Bytes()
}

// Digest is the 32-byte message players sign.
func (r *ResultRecord) Digest() HexBytes {
	return crypto.Keccak256(r.Encode())
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func writeUint32(buf *bytes.Buffer, v int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}
