package qr

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCooldown is how long a scanned payload is remembered for duplicate
// rejection.
const DefaultCooldown = 10 * time.Second

// Scanner validates incoming payloads on behalf of one user: it decodes,
// rejects self-referential payloads, and suppresses re-scans of the same
// payload within a cooldown window. The underlying chat resolution is
// idempotent regardless; the cooldown only stops the interaction from
// re-triggering.
type Scanner struct {
	selfUID  string
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time // payload uid -> last scan time
}

// NewScanner creates a scanner for the given user. A non-positive cooldown
// falls back to DefaultCooldown.
func NewScanner(selfUID string, cooldown time.Duration) *Scanner {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Scanner{
		selfUID:  selfUID,
		cooldown: cooldown,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

// Scan decodes and validates a payload string. Returns ErrSelfReference when
// the payload identifies the scanner's own user and ErrDuplicateScan when
// the same uid was scanned within the cooldown window.
func (s *Scanner) Scan(payload string) (*Payload, error) {
	p, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if p.UID == s.selfUID {
		return nil, fmt.Errorf("%w: %s", ErrSelfReference, p.UID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if seen, ok := s.lastSeen[p.UID]; ok && now.Sub(seen) < s.cooldown {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateScan, p.UID)
	}
	s.lastSeen[p.UID] = now
	s.evictExpiredLocked(now)
	return p, nil
}

func (s *Scanner) evictExpiredLocked(now time.Time) {
	for uid, seen := range s.lastSeen {
		if now.Sub(seen) >= s.cooldown {
			delete(s.lastSeen, uid)
		}
	}
}
