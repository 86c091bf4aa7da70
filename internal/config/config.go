package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreLevelDB  = "leveldb"
)

type Config struct {
	AppPort     string
	StoreDriver string
	DatabaseURL string
	DBMaxConns  int
	LevelDBPath string
	JWTSecret   string
	JWTTTL      time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Timing        game.Timing
	DefaultBestOf int
	StakeTiers    []domain.StakeTier
	LobbyTTL      time.Duration
	AuthMaxSkew   time.Duration

	SettlementURL   string
	SettlementToken string
	ArchiveBucket   string
	ArchiveEndpoint string
	ArchiveRegion   string
	ArchiveKeyID    string
	ArchiveSecret   string

	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	// Rate limits (0 disables)
	APIRateLimit    int
	AuthRateLimit   int
	ActionRateLimit int
	RateLimitWindow time.Duration
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	driver := envString("STORE_DRIVER", StorePostgres)
	dbURL := os.Getenv("DATABASE_URL")
	switch driver {
	case StorePostgres:
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is not set")
		}
	case StoreLevelDB:
	default:
		logger.Fatal("unknown STORE_DRIVER", "driver", driver)
	}

	tiers, err := parseTiers(envString("STAKE_TIERS", "bronze,silver,gold"))
	if err != nil {
		logger.Fatal("invalid STAKE_TIERS", "error", err)
	}

	bestOf := envInt("DEFAULT_BEST_OF", 3)
	if bestOf < 1 || bestOf%2 == 0 {
		logger.Fatal("DEFAULT_BEST_OF must be a positive odd number", "value", bestOf)
	}

	return &Config{
		AppPort:     envString("APP_PORT", "8080"),
		StoreDriver: driver,
		DatabaseURL: dbURL,
		DBMaxConns:  envInt("DB_MAX_CONNS", 0),
		LevelDBPath: envString("LEVELDB_PATH", "data/rps.ldb"),
		JWTSecret:   jwtSecret,
		JWTTTL:      envDuration("JWT_TTL", 24*time.Hour),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Timing: game.Timing{
			CommitWindow:    envDuration("COMMIT_WINDOW", 30*time.Second),
			RevealWindow:    envDuration("REVEAL_WINDOW", 30*time.Second),
			PhaseBuffer:     envDuration("PHASE_BUFFER", 2*time.Second),
			NextRoundBuffer: envDuration("NEXT_ROUND_BUFFER", 3*time.Second),
		},
		DefaultBestOf: bestOf,
		StakeTiers:    tiers,
		LobbyTTL:      envDuration("LOBBY_INTENT_TTL", 2*time.Minute),
		AuthMaxSkew:   envDuration("AUTH_MAX_SKEW", 5*time.Minute),

		SettlementURL:   os.Getenv("SETTLEMENT_URL"),
		SettlementToken: os.Getenv("SETTLEMENT_TOKEN"),
		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		ArchiveEndpoint: os.Getenv("ARCHIVE_ENDPOINT"),
		ArchiveRegion:   envString("ARCHIVE_REGION", "us-east-1"),
		ArchiveKeyID:    os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
		ArchiveSecret:   os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),

		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",

		APIRateLimit:    envInt("API_RATE_LIMIT", 120),
		AuthRateLimit:   envInt("AUTH_RATE_LIMIT", 10),
		ActionRateLimit: envInt("ACTION_RATE_LIMIT", 60),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func parseTiers(s string) ([]domain.StakeTier, error) {
	var tiers []domain.StakeTier
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, err := domain.ParseStakeTier(name)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	if len(tiers) == 0 {
		return domain.StakeTiers, nil
	}
	return tiers, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		logger.Warn("ignoring invalid integer", "key", key, "value", v)
	}
	return def
}

// envDuration accepts Go durations ("30s") or plain seconds ("30").
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	logger.Warn("ignoring invalid duration", "key", key, "value", v)
	return def
}
