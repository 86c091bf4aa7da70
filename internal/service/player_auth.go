package service

import (
	"strconv"
	"time"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
)

const authPrefix = "rps-auth:"

// AuthMessage is the challenge a player signs to obtain a session token.
func AuthMessage(publicKey string, timestamp int64) []byte {
	return []byte(authPrefix + publicKey + ":" + strconv.FormatInt(timestamp, 10))
}

// ValidatePlayerAuth verifies an ed25519 signature over AuthMessage and checks that the
// timestamp is within maxSkew of now to mitigate replay. The player identity is the
// lowercase hex public key.
func ValidatePlayerAuth(publicKey string, timestamp int64, sigHex string, now time.Time, maxSkew time.Duration) (domain.PlayerID, bool) {
	pub, err := crypto.PubKeyFromHex(publicKey)
	if err != nil {
		return "", false
	}
	// The signed message carries the canonical form, so "0xABCD..." and "abcd..." are one player.
	canonical := pub.Hex()

	if err := crypto.Verify(pub, AuthMessage(canonical, timestamp), sigHex); err != nil {
		return "", false
	}

	// Freshness check: allow maxSkew in either direction
	delta := now.Unix() - timestamp
	if delta < 0 {
		delta = -delta
	}
	if time.Duration(delta)*time.Second > maxSkew {
		return "", false
	}

	return domain.PlayerID(canonical), true
}
