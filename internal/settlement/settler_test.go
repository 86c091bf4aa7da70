package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rps_arena/internal/game"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func testPayload() *game.SettlementPayload {
	return &game.SettlementPayload{
		Record:     game.ResultRecord{MatchID: "m1", Player1: "a", Player2: "b", Winner: "a", BestOf: 3, Wins1: 2},
		Digest:     game.HexBytes{1, 2, 3},
		Signature1: "s1",
		Signature2: "s2",
	}
}

func TestHTTPSettler(t *testing.T) {
	var got game.SettlementPayload
	var auth, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSettler(srv.URL, "secret")
	if err := s.Settle(context.Background(), testPayload()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if auth != "Bearer secret" || key != "m1" {
		t.Fatalf("headers: auth=%q key=%q", auth, key)
	}
	if got.Record.MatchID != "m1" || got.Signature2 != "s2" || got.Digest.String() != "010203" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestHTTPSettlerStatuses(t *testing.T) {
	cases := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusConflict, false},
		{http.StatusBadRequest, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		err := NewHTTPSettler(srv.URL, "").Settle(context.Background(), testPayload())
		srv.Close()
		if (err != nil) != tc.wantErr {
			t.Fatalf("status %d: err = %v", tc.status, err)
		}
	}
}

type fakePutter struct {
	key  string
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key = *in.Key
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

type failingSettler struct{}

func (failingSettler) Settle(ctx context.Context, p *game.SettlementPayload) error {
	return errors.New("down")
}

func TestArchive(t *testing.T) {
	put := &fakePutter{}
	a := NewArchive(LogSettler{}, put, "bucket")
	if err := a.Settle(context.Background(), testPayload()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if put.key != "settlements/m1.json" || len(put.body) == 0 {
		t.Fatalf("archived %q (%d bytes)", put.key, len(put.body))
	}

	// Upload errors do not fail the handoff.
	put.err = errors.New("s3 down")
	if err := a.Settle(context.Background(), testPayload()); err != nil {
		t.Fatalf("archive error leaked: %v", err)
	}

	// Nothing is archived when settlement fails.
	put2 := &fakePutter{}
	if err := NewArchive(failingSettler{}, put2, "bucket").Settle(context.Background(), testPayload()); err == nil {
		t.Fatalf("settler error swallowed")
	}
	if put2.key != "" {
		t.Fatalf("archived a failed settlement")
	}
}
