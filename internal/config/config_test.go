package config

import (
	"reflect"
	"testing"
	"time"

	"rps_arena/internal/domain"
)

func TestLoadLevelDB(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_DRIVER", "leveldb")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("COMMIT_WINDOW", "45s")
	t.Setenv("REVEAL_WINDOW", "20")
	t.Setenv("PHASE_BUFFER", "nonsense")
	t.Setenv("STAKE_TIERS", "gold, bronze")
	t.Setenv("DEFAULT_BEST_OF", "5")

	cfg := Load()
	if cfg.StoreDriver != StoreLevelDB {
		t.Fatalf("driver = %s", cfg.StoreDriver)
	}
	if cfg.Timing.CommitWindow != 45*time.Second || cfg.Timing.RevealWindow != 20*time.Second {
		t.Fatalf("timing = %+v", cfg.Timing)
	}
	if cfg.Timing.PhaseBuffer != 2*time.Second {
		t.Fatalf("invalid duration not defaulted: %v", cfg.Timing.PhaseBuffer)
	}
	if !reflect.DeepEqual(cfg.StakeTiers, []domain.StakeTier{domain.StakeGold, domain.StakeBronze}) {
		t.Fatalf("tiers = %v", cfg.StakeTiers)
	}
	if cfg.DefaultBestOf != 5 {
		t.Fatalf("best_of = %d", cfg.DefaultBestOf)
	}
}

func TestParseTiers(t *testing.T) {
	if _, err := parseTiers("gold,diamond"); err == nil {
		t.Fatalf("unknown tier accepted")
	}
	got, err := parseTiers(" , ")
	if err != nil || !reflect.DeepEqual(got, domain.StakeTiers) {
		t.Fatalf("empty list = %v, %v", got, err)
	}
}
