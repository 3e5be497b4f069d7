package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/store/memory"
)

func TestAuditEventsReachSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := NewChannelSink(16)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(memory.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "192.0.2.1")
	if _, err := engine.Register(ctx, RegisterRequest{Email: "a@example.com", Username: "alice", Password: "Secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != AuditAccountRegistered || !ev.Success || ev.IP != "192.0.2.1" || ev.AccountID == 0 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}
