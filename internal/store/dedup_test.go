package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// dedupContract runs the same checks against every InboundDeduper.
func dedupContract(t *testing.T, d InboundDeduper) {
	t.Helper()
	ctx := context.Background()

	fresh, err := d.RecordInbound(ctx, "SM-dedup-1", "447700900000")
	if err != nil {
		t.Fatalf("RecordInbound failed: %v", err)
	}
	if !fresh {
		t.Error("first delivery should be fresh")
	}

	fresh, err = d.RecordInbound(ctx, "SM-dedup-1", "447700900000")
	if err != nil {
		t.Fatalf("RecordInbound (redelivery) failed: %v", err)
	}
	if fresh {
		t.Error("redelivery should be reported as a duplicate")
	}

	if err := d.MarkProcessed(ctx, "SM-dedup-1"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if fresh, _ := d.RecordInbound(ctx, "SM-dedup-1", "447700900000"); fresh {
		t.Error("processed message should stay a duplicate")
	}

	if fresh, _ := d.RecordInbound(ctx, "SM-dedup-2", "447700900000"); !fresh {
		t.Error("different message ID should be fresh")
	}
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper()
	dedupContract(t, d)

	n, err := d.PruneInbound(context.Background(), time.Now().Add(time.Minute))
	if err != nil || n != 2 {
		t.Errorf("PruneInbound = %d, %v; want 2", n, err)
	}
	if fresh, _ := d.RecordInbound(context.Background(), "SM-dedup-1", "x"); !fresh {
		t.Error("pruned ID should be fresh again")
	}
}

func TestSQLiteDeduper(t *testing.T) {
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "carebear.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	dedupContract(t, s)

	ctx := context.Background()
	if n, err := s.PruneInbound(ctx, time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Errorf("recent records should survive pruning, removed %d (%v)", n, err)
	}
	if n, err := s.PruneInbound(ctx, time.Now().Add(time.Hour)); err != nil || n != 2 {
		t.Errorf("PruneInbound = %d, %v; want 2", n, err)
	}
}

func TestPostgresDeduper(t *testing.T) {
	connStr := getenvOrSkip(t, "DATABASE_URL")
	if DetectDSNType(connStr) != "postgres" {
		t.Skip("DATABASE_URL is not a postgres DSN")
	}
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM inbound_dedup WHERE message_id LIKE 'SM-dedup-%'")
	dedupContract(t, pgStore)
	pgStore.db.Exec("DELETE FROM inbound_dedup WHERE message_id LIKE 'SM-dedup-%'")
}

func TestRedisDeduper(t *testing.T) {
	mr, client := newMiniredisClient(t)
	d := NewRedisDeduper(client, "test:", time.Hour)
	dedupContract(t, d)

	key := "test:inbound:SM-dedup-1"
	if !mr.Exists(key) {
		t.Fatalf("expected key %s", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Hour {
		t.Errorf("MarkProcessed should keep the TTL, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if fresh, _ := d.RecordInbound(context.Background(), "SM-dedup-1", "x"); !fresh {
		t.Error("expired ID should be fresh again")
	}
}
