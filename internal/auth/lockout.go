package auth

import (
	"context"
	"sync"
	"time"
)

type loginAttempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Lockout blocks a username for a while after repeated failed logins.
type Lockout struct {
	mu          sync.Mutex
	attempts    map[string]*loginAttempt
	maxAttempts int
	duration    time.Duration
	window      time.Duration
	now         func() time.Time
}

// NewLockout locks a username for duration once maxAttempts failures happen
// within window of each other.
func NewLockout(maxAttempts int, duration, window time.Duration) *Lockout {
	return &Lockout{
		attempts:    make(map[string]*loginAttempt),
		maxAttempts: maxAttempts,
		duration:    duration,
		window:      window,
		now:         time.Now,
	}
}

// RecordFailure counts a failed attempt and reports whether the username is
// now locked.
func (l *Lockout) RecordFailure(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a, ok := l.attempts[username]
	if !ok {
		a = &loginAttempt{}
		l.attempts[username] = a
	}
	if now.Sub(a.lastAttempt) > l.window {
		a.count = 0
	}
	a.count++
	a.lastAttempt = now

	if a.count >= l.maxAttempts {
		a.lockedUntil = now.Add(l.duration)
		return true
	}
	return false
}

// RecordSuccess forgets previous failures.
func (l *Lockout) RecordSuccess(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, username)
}

func (l *Lockout) IsLocked(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.attempts[username]
	if !ok {
		return false
	}
	return !a.lockedUntil.IsZero() && l.now().Before(a.lockedUntil)
}

// Run prunes stale entries every interval until ctx is done.
func (l *Lockout) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *Lockout) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for username, a := range l.attempts {
		if (a.lockedUntil.IsZero() || now.After(a.lockedUntil)) &&
			now.Sub(a.lastAttempt) > 2*l.window {
			delete(l.attempts, username)
		}
	}
}
