package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// epochRecord is the committed timing anchor for one remote client IP's
// current HTTP pull session.
type epochRecord struct {
	epoch       uint64
	connectedAt time.Time
	firstAudio  time.Time // zero until the epoch is committed
}

// timingMap tracks, per remote client IP, the epoch id of its current
// connection and the wall-clock instant its first non-silence frame went
// out. Used to detect HTTP resumes and to compute speaker latency.
type timingMap struct {
	mu      sync.RWMutex
	byIP    map[string]*epochRecord
	counter atomic.Uint64
}

func newTimingMap() *timingMap {
	return &timingMap{byIP: make(map[string]*epochRecord)}
}

// nextEpochCandidate returns a fresh monotonic epoch id for a new
// subscription. It is not yet visible via CurrentEpochFor until committed.
func (t *timingMap) nextEpochCandidate() uint64 {
	return t.counter.Add(1)
}

// CurrentEpochFor returns the committed epoch for ip, if any. A non-nil
// result means this IP has previously had a committed (non-silence) epoch
// on this stream — the basis for resume detection (§4.4, §9 open question).
func (t *timingMap) CurrentEpochFor(ip string) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byIP[ip]
	if !ok || rec.firstAudio.IsZero() {
		return 0, false
	}
	return rec.epoch, true
}

// StartEpoch commits candidate as the current epoch for ip, recording when
// the connection was accepted and when its first non-silence frame went
// out. Called exactly once per connection, on first non-silence emission.
func (t *timingMap) StartEpoch(candidate uint64, connectedAt time.Time, ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byIP[ip] = &epochRecord{
		epoch:       candidate,
		connectedAt: connectedAt,
		firstAudio:  time.Now(),
	}
}

// LatencyFor returns the observed latency (time between connection accept
// and first real audio byte) for ip's current epoch.
func (t *timingMap) LatencyFor(ip string) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.byIP[ip]
	if !ok || rec.firstAudio.IsZero() {
		return 0, false
	}
	return rec.firstAudio.Sub(rec.connectedAt), true
}
