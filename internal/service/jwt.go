package service

import (
	"errors"
	"time"

	"rps_arena/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret []byte
	jwtTTL    = 24 * time.Hour
)

func InitJWT(secret string, ttl time.Duration) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
	if ttl > 0 {
		jwtTTL = ttl
	}
}

func GenerateJWT(player domain.PlayerID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": string(player),
		"exp": now.Add(jwtTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (domain.PlayerID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	// validate time-based claims
	now := time.Now().Unix()
	if exp, ok := claims["exp"].(float64); ok {
		if int64(exp) < now {
			return "", errors.New("token expired")
		}
	}
	if nbf, ok := claims["nbf"].(float64); ok {
		if int64(nbf) > now {
			return "", errors.New("token not valid yet")
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("sub not found")
	}

	return domain.PlayerID(sub), nil
}
