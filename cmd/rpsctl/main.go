package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/service"
)

const usage = `usage: rpsctl <command> [flags]

commands:
  keygen                          new ed25519 player key pair
  commit -move rock [-salt hex]   commitment digest for a move
  auth   -key priv [-ts unix]     body for POST /api/v1/auth
  sign   -key priv -digest hex    signature over a result digest
  token  -player id               mint a session token (needs JWT_SECRET)
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "keygen":
		keygen()
	case "commit":
		commit(args)
	case "auth":
		auth(args)
	case "sign":
		sign(args)
	case "token":
		token(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func keygen() {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	printJSON(map[string]string{"private_key": priv.Hex(), "public_key": pub.Hex()})
}

func commit(args []string) {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	moveName := fs.String("move", "", "rock | paper | scissors")
	saltHex := fs.String("salt", "", "32-byte hex salt (random when empty)")
	_ = fs.Parse(args)

	move, err := domain.ParseMove(*moveName)
	if err != nil {
		log.Fatal(err)
	}
	var salt []byte
	if *saltHex == "" {
		if salt, err = crypto.RandomBytes(game.SaltSize); err != nil {
			log.Fatalf("salt: %v", err)
		}
	} else if salt, err = crypto.DecodeHex(*saltHex); err != nil {
		log.Fatalf("salt: %v", err)
	}

	digest, err := game.Commit(move, salt)
	if err != nil {
		log.Fatal(err)
	}
	printJSON(map[string]any{"move": move.String(), "salt": game.HexBytes(salt), "digest": game.HexBytes(digest)})
}

func auth(args []string) {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	keyHex := fs.String("key", "", "hex private key")
	ts := fs.Int64("ts", 0, "unix timestamp (now when 0)")
	_ = fs.Parse(args)

	priv := mustKey(*keyHex)
	if *ts == 0 {
		*ts = time.Now().Unix()
	}
	pub := priv.Public().Hex()
	printJSON(map[string]any{
		"public_key": pub,
		"timestamp":  *ts,
		"signature":  crypto.Sign(priv, service.AuthMessage(pub, *ts)),
	})
}

func sign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyHex := fs.String("key", "", "hex private key")
	digestHex := fs.String("digest", "", "hex result digest from GET /result")
	_ = fs.Parse(args)

	priv := mustKey(*keyHex)
	digest, err := crypto.DecodeHex(*digestHex)
	if err != nil || len(digest) != game.DigestSize {
		log.Fatalf("digest must be %d hex bytes", game.DigestSize)
	}
	printJSON(map[string]string{"signature": crypto.Sign(priv, digest)})
}

func token(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	player := fs.String("player", "", "player id (hex public key)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	if *player == "" {
		log.Fatal("-player is required")
	}
	service.InitJWT(secret, *ttl)
	t, err := service.GenerateJWT(domain.PlayerID(*player))
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Println(t)
}

func mustKey(s string) crypto.PrivateKey {
	if s == "" {
		log.Fatal("-key is required")
	}
	priv, err := crypto.PrivKeyFromHex(s)
	if err != nil {
		log.Fatalf("private key: %v", err)
	}
	return priv
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal(err)
	}
}
