package client

import (
	"testing"
	"time"

	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/protocol"
)

func newTestSyncer(t *testing.T) *Syncer {
	t.Helper()

	engine := NewEngine("dev-a", logger.Nop())
	cfg := &config.ClientConfig{ServerURL: "http://localhost:8080", DataDir: t.TempDir()}
	return NewSyncer(engine, cfg, "session-token", logger.Nop())
}

func TestNextBackoff(t *testing.T) {
	schedule := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second}
	current := time.Duration(0)
	for i, from := range schedule {
		current = nextBackoff(from)
		want := time.Duration(1<<i) * time.Second
		if current != want {
			t.Errorf("step %d: expected %v, got %v", i, want, current)
		}
	}

	if got := nextBackoff(20 * time.Second); got != maxBackoff {
		t.Errorf("expected cap at %v, got %v", maxBackoff, got)
	}
	if got := nextBackoff(maxBackoff); got != maxBackoff {
		t.Errorf("backoff must stay at the cap, got %v", got)
	}
}

func TestAuthOkMarksConnectionAuthenticated(t *testing.T) {
	s := newTestSyncer(t)

	// Run resets the reconnect backoff only for connections that got past
	// authentication; AuthOk is what flips that state.
	if s.authed {
		t.Fatal("fresh syncer already marked authenticated")
	}
	s.handleMessage(&protocol.AuthOk{ServerVersion: "v1"})
	if !s.authed {
		t.Error("AuthOk did not mark the connection authenticated")
	}
}

func TestRoomJoinedSeedsOwnSequence(t *testing.T) {
	s := newTestSyncer(t)

	key, err := crypto.NewDocumentKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	// Enabled with no counter memory, as after a client restart.
	s.engine.EnableProject("proj-1", key, 0)

	s.handleMessage(&protocol.RoomJoined{
		ProjectID:           "proj-1",
		ServerVersionVector: map[string]int64{"dev-a": 7, "dev-b": 3},
	})

	update, err := s.engine.MakeUpdate("proj-1", []byte("data"))
	if err != nil {
		t.Fatalf("make update failed: %v", err)
	}
	if update.Sequence != 8 {
		t.Errorf("expected sequence 8 after rejoining, got %d", update.Sequence)
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://relay.example.com", "wss://relay.example.com/ws"},
		{"ws://relay.example.com", "ws://relay.example.com/ws"},
		{"wss://relay.example.com/base", "wss://relay.example.com/ws"},
	}
	for _, tt := range tests {
		got, err := wsURL(tt.in)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.in, tt.want, got)
		}
	}

	if _, err := wsURL("ftp://example.com"); err == nil {
		t.Error("expected an error for a non-http scheme")
	}
}
