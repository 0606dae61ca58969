package store

import (
	"context"
	"sync"
	"time"
)

// InboundDeduper remembers inbound message IDs so a redelivered message runs at most one turn.
type InboundDeduper interface {
	// RecordInbound stores messageID and reports whether it was seen for the first time.
	RecordInbound(ctx context.Context, messageID, sender string) (bool, error)
	// MarkProcessed notes that the message was answered.
	MarkProcessed(ctx context.Context, messageID string) error
}

// InboundPruner is implemented by dedupers without native expiry.
type InboundPruner interface {
	// PruneInbound deletes records received before the cutoff and returns how many were removed.
	PruneInbound(ctx context.Context, before time.Time) (int, error)
}

// MemoryDeduper keeps message IDs in process memory.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryDeduper creates an empty MemoryDeduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) RecordInbound(ctx context.Context, messageID, sender string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[messageID]; ok {
		return false, nil
	}
	d.seen[messageID] = time.Now()
	return true, nil
}

func (d *MemoryDeduper) MarkProcessed(ctx context.Context, messageID string) error {
	return nil
}

func (d *MemoryDeduper) PruneInbound(ctx context.Context, before time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, at := range d.seen {
		if at.Before(before) {
			delete(d.seen, id)
			n++
		}
	}
	return n, nil
}
