package service

import (
	"testing"
	"time"

	"rps_arena/internal/crypto"
)

func TestValidatePlayerAuth_Valid(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	ts := now.Unix()
	sig := crypto.Sign(priv, AuthMessage(pub.Hex(), ts))

	player, ok := ValidatePlayerAuth("0x"+pub.Hex(), ts, sig, now, time.Minute)
	if !ok {
		t.Fatalf("expected valid auth")
	}
	if string(player) != pub.Hex() {
		t.Fatalf("player = %s; want %s", player, pub.Hex())
	}
}

func TestValidatePlayerAuth_Rejects(t *testing.T) {
	priv, pub, _ := crypto.GenerateKeyPair()
	otherPriv, _, _ := crypto.GenerateKeyPair()
	now := time.Now()
	ts := now.Unix()

	cases := []struct {
		name string
		pk   string
		ts   int64
		sig  string
	}{
		{"wrong key", pub.Hex(), ts, crypto.Sign(otherPriv, AuthMessage(pub.Hex(), ts))},
		{"stale", pub.Hex(), ts - 600, crypto.Sign(priv, AuthMessage(pub.Hex(), ts-600))},
		{"future", pub.Hex(), ts + 600, crypto.Sign(priv, AuthMessage(pub.Hex(), ts+600))},
		{"tampered timestamp", pub.Hex(), ts + 1, crypto.Sign(priv, AuthMessage(pub.Hex(), ts))},
		{"bad key", "abcd", ts, crypto.Sign(priv, AuthMessage(pub.Hex(), ts))},
	}
	for _, tc := range cases {
		if _, ok := ValidatePlayerAuth(tc.pk, tc.ts, tc.sig, now, time.Minute); ok {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestJWTRoundTrip(t *testing.T) {
	InitJWT("test-secret", time.Hour)

	tok, err := GenerateJWT("abc")
	if err != nil {
		t.Fatal(err)
	}
	p, err := ParseJWT(tok)
	if err != nil || p != "abc" {
		t.Fatalf("ParseJWT = %q, %v", p, err)
	}
	if _, err := ParseJWT(tok + "x"); err == nil {
		t.Fatalf("tampered token accepted")
	}
}
