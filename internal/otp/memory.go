package otp

import (
	"context"
	"sync"
	"time"

	"github.com/cropintel-api/internal/domain"
	"github.com/sirupsen/logrus"
)

// MemoryStore is a process-local Store guarded by a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	s.records[rec.Email] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (*Record, error) {
	s.mu.Lock()
	rec, ok := s.records[email]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrOTPNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	delete(s.records, email)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CompareAndDelete(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok || rec.Code != code {
		return false, nil
	}
	delete(s.records, email)
	return true, nil
}

// Len returns the number of records currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sweep removes records issued before cutoff and returns how many it removed.
func (s *MemoryStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, rec := range s.records {
		if rec.IssuedAt.Before(cutoff) {
			delete(s.records, email)
			n++
		}
	}
	return n
}

// RunSweeper periodically drops records older than expiry until ctx is done.
// It only bounds memory; validation never depends on it. Non-positive interval
// or expiry fall back to DefaultExpiry.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval, expiry time.Duration, now func() time.Time, logger *logrus.Logger) {
	if interval <= 0 {
		interval = DefaultExpiry
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(now().Add(-expiry)); n > 0 {
				logger.WithField("removed", n).Debug("swept expired otp records")
			}
		}
	}
}
