package repository

import (
	"context"
	"sync"
	"time"
)

// Reminder marks expire after two days; only the current day is ever checked.
const reminderLedgerTTL = 48 * time.Hour

// ReminderLedger records which reminders were already sent.
type ReminderLedger interface {
	// MarkSent records key and reports true only for the first caller.
	MarkSent(ctx context.Context, key string) (bool, error)
}

// MemoryReminderLedger keeps reminder marks in process memory.
type MemoryReminderLedger struct {
	mu   sync.Mutex
	sent map[string]time.Time
	now  func() time.Time
}

// NewMemoryReminderLedger constructs an empty ledger.
func NewMemoryReminderLedger() *MemoryReminderLedger {
	return &MemoryReminderLedger{sent: make(map[string]time.Time), now: time.Now}
}

// MarkSent implements ReminderLedger.
func (l *MemoryReminderLedger) MarkSent(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, at := range l.sent {
		if now.Sub(at) > reminderLedgerTTL {
			delete(l.sent, k)
		}
	}
	if _, ok := l.sent[key]; ok {
		return false, nil
	}
	l.sent[key] = now
	return true, nil
}

type setNXCache interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// RedisReminderLedger shares reminder marks across instances.
type RedisReminderLedger struct {
	cache setNXCache
}

// NewRedisReminderLedger constructs the ledger.
func NewRedisReminderLedger(cache setNXCache) *RedisReminderLedger {
	return &RedisReminderLedger{cache: cache}
}

// MarkSent implements ReminderLedger.
func (l *RedisReminderLedger) MarkSent(ctx context.Context, key string) (bool, error) {
	return l.cache.SetNX(ctx, "reminder:"+key, time.Now().UTC(), reminderLedgerTTL)
}
