package mariadb

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func TestOpen_RequiresDSN(t *testing.T) {
	for _, cfg := range []*config.RosterConfig{nil, {MaxOpenConns: 2}} {
		if _, err := Open(context.Background(), cfg); err == nil {
			t.Errorf("expected an error for config %+v", cfg)
		}
	}
}

func TestOpen_RejectsMalformedDSN(t *testing.T) {
	cfg := &config.RosterConfig{DatabaseURL: "not a dsn", MaxOpenConns: 2, MaxIdleConns: 1}
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("expected an error for a malformed DSN")
	}
}

func TestOpen_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &config.RosterConfig{DatabaseURL: "root:test@tcp(127.0.0.1:1)/school", MaxOpenConns: 2, MaxIdleConns: 1}
	if _, err := Open(ctx, cfg); err == nil {
		t.Error("expected Open to fail on a cancelled context")
	}
}
