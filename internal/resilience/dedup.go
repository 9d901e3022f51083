package resilience

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDedupWindow is the window within which a repeated tool call
// is considered an accidental duplicate (double-tap, model stutter).
const DefaultDedupWindow = 500 * time.Millisecond

// Deduplicator suppresses repeated requests inside a short time
// window. Expired entries are pruned lazily on each check, never on a
// timer.
type Deduplicator struct {
	window time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	recent map[string]time.Time

	now func() time.Time
}

// NewDeduplicator creates a deduplicator. A non-positive window takes
// the default.
func NewDeduplicator(window time.Duration, logger *slog.Logger) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		window: window,
		logger: logger,
		recent: make(map[string]time.Time),
		now:    time.Now,
	}
}

// IsDuplicate reports whether key was seen within the window. A fresh
// key is recorded and returns false; a repeat inside the window
// returns true without refreshing the entry's clock.
func (d *Deduplicator) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, seen := range d.recent {
		if now.Sub(seen) > d.window {
			delete(d.recent, k)
		}
	}

	if seen, ok := d.recent[key]; ok {
		age := now.Sub(seen)
		if age < d.window {
			d.logger.Debug("duplicate request detected",
				"key", key, "age", age)
			return true
		}
	}

	d.recent[key] = now
	return false
}

// Clear forgets all tracked requests.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = make(map[string]time.Time)
}

// Key builds a deduplication key from a tool name and its arguments.
// Arguments are rendered as canonical JSON (sorted keys) so argument
// order does not defeat deduplication.
func Key(name string, args map[string]any) string {
	payload, err := json.Marshal(map[string]any{"name": name, "args": args})
	if err != nil {
		// Unmarshalable args still need a stable-enough key.
		payload = []byte(fmt.Sprintf("%s:%v", name, args))
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}
