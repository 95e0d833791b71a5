package cache

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"
)

// MaxOTPAttempts is how many wrong codes burn a pending OTP.
const MaxOTPAttempts = 5

// OTPStore keeps one pending one-time code per email. Verify consumes the code
// on success; too many wrong guesses discard it.
type OTPStore interface {
	Put(ctx context.Context, email string, code string, ttl time.Duration) error
	Verify(ctx context.Context, email string, code string) (bool, error)
	Delete(ctx context.Context, email string) error
}

type pendingOTP struct {
	code      string
	expiresAt time.Time
	attempts  int
}

type MemoryOTPStore struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[string]pendingOTP
}

func NewMemoryOTPStore(now func() time.Time) *MemoryOTPStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryOTPStore{now: now, pending: make(map[string]pendingOTP)}
}

func (s *MemoryOTPStore) Put(_ context.Context, email string, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[normalizeEmail(email)] = pendingOTP{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) Verify(_ context.Context, email string, code string) (bool, error) {
	key := normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[key]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.pending, key)
		return false, nil
	}
	if !codesMatch(entry.code, code) {
		entry.attempts++
		if entry.attempts >= MaxOTPAttempts {
			delete(s.pending, key)
		} else {
			s.pending[key] = entry
		}
		return false, nil
	}
	delete(s.pending, key)
	return true, nil
}

func (s *MemoryOTPStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, normalizeEmail(email))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func codesMatch(expected string, got string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(got))) == 1
}
