package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/infra/security"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func attemptFixture(id, identifier string, succeeded bool, at time.Time) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:         id,
		Identifier: identifier,
		Succeeded:  succeeded,
		At:         at,
	}
}

func TestAttemptLogAppendAndList(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{}, nil)

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		attempt := attemptFixture(fmt.Sprintf("a-%d", i), "a@x.com", false, base.Add(time.Duration(i)*time.Second))
		if err := repo.Append(ctx, attempt); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	attempts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}

	// Newest first.
	if attempts[0].ID != "a-2" || attempts[2].ID != "a-0" {
		t.Fatalf("unexpected order: %s, %s, %s", attempts[0].ID, attempts[1].ID, attempts[2].ID)
	}
	if !attempts[0].At.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("timestamp did not round-trip: %v", attempts[0].At)
	}
}

func TestAttemptLogCap(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{Cap: 5}, nil)

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		if err := repo.Append(ctx, attemptFixture(fmt.Sprintf("a-%d", i), "a@x.com", false, base)); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	attempts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(attempts) != 5 {
		t.Fatalf("expected capped log of 5, got %d", len(attempts))
	}
	// The oldest three were evicted.
	if attempts[0].ID != "a-7" || attempts[4].ID != "a-3" {
		t.Fatalf("unexpected entries after eviction: %s ... %s", attempts[0].ID, attempts[4].ID)
	}
}

func TestAttemptLogClearFailures(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{}, nil)

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	entries := []domain.LoginAttempt{
		attemptFixture("a-1", "a@x.com", false, base),
		attemptFixture("b-1", "b@x.com", false, base.Add(time.Second)),
		attemptFixture("a-2", "a@x.com", true, base.Add(2*time.Second)),
		attemptFixture("a-3", "a@x.com", false, base.Add(3*time.Second)),
	}
	for _, entry := range entries {
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	if err := repo.ClearFailures(ctx, "a@x.com"); err != nil {
		t.Fatalf("ClearFailures returned error: %v", err)
	}

	attempts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 surviving attempts, got %d", len(attempts))
	}
	// Successful entry and the other identifier survive, newest first.
	if attempts[0].ID != "a-2" || attempts[1].ID != "b-1" {
		t.Fatalf("unexpected survivors: %s, %s", attempts[0].ID, attempts[1].ID)
	}
}

func TestAttemptLogClearFailuresEmptiesLog(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{}, nil)

	ctx := context.Background()
	if err := repo.Append(ctx, attemptFixture("a-1", "a@x.com", false, time.Now().UTC())); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	if err := repo.ClearFailures(ctx, "a@x.com"); err != nil {
		t.Fatalf("ClearFailures returned error: %v", err)
	}

	attempts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected empty log, got %d entries", len(attempts))
	}
}

func TestAttemptLogListSkipsUndecodableEntries(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{}, nil)

	ctx := context.Background()
	if err := repo.Append(ctx, attemptFixture("a-1", "a@x.com", false, time.Now().UTC())); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if _, err := server.Lpush("auth:login-attempts", "not-json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	attempts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != "a-1" {
		t.Fatalf("expected the corrupt entry skipped, got %+v", attempts)
	}
}

func TestCacheLockoutSetsTTLAndHashesKey(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{LockoutPrefix: "auth:lockout"}, nil)

	ctx := context.Background()
	until := time.Now().UTC().Add(15 * time.Minute)

	if err := repo.CacheLockout(ctx, "a@x.com", until); err != nil {
		t.Fatalf("CacheLockout returned error: %v", err)
	}

	key := fmt.Sprintf("auth:lockout:%s", security.HashToken("a@x.com"))
	if !server.Exists(key) {
		t.Fatalf("expected lockout marker at %s", key)
	}
	if server.Exists("auth:lockout:a@x.com") {
		t.Fatal("raw identifier must not appear in the key")
	}

	remaining := server.TTL(key)
	if remaining <= 0 || remaining > 15*time.Minute {
		t.Fatalf("expected ttl within (0, 15m], got %v", remaining)
	}
}

func TestCacheLockoutSkipsExpiredMarker(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewAttemptLogRepository(client, AttemptLogConfig{}, nil)

	until := time.Now().UTC().Add(-time.Minute)
	if err := repo.CacheLockout(context.Background(), "a@x.com", until); err != nil {
		t.Fatalf("CacheLockout returned error: %v", err)
	}

	if len(server.Keys()) != 0 {
		t.Fatalf("expired marker must not be written, keys: %v", server.Keys())
	}
}
