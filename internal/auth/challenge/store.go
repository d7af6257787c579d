// Package challenge keeps pending login challenges keyed by wallet,
// each valid for a bounded window.
package challenge

import (
	"sync"
	"time"

	"github.com/cotravel/cotravel/internal/clock"
)

type entry struct {
	message  string
	issuedAt time.Time
}

// Store is a TTL map of wallet -> pending challenge. A background
// sweep drops expired entries so abandoned challenges do not pile up.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
	stop    chan struct{}
	done    chan struct{}
}

func NewStore(ttl time.Duration, clk clock.Clock) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clk,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Put stores a challenge for the wallet, replacing any previous one.
func (s *Store) Put(wallet, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[wallet] = entry{message: message, issuedAt: s.clock.Now()}
}

// Take removes and returns the pending challenge for the wallet. The
// second return reports whether one existed, the third whether it was
// still within its validity window. A challenge can be taken at most
// once either way.
func (s *Store) Take(wallet string) (string, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[wallet]
	if !ok {
		return "", false, false
	}
	delete(s.entries, wallet)

	if s.clock.Now().Sub(e.issuedAt) > s.ttl {
		return "", true, false
	}
	return e.message, true, true
}

// Len reports the number of pending challenges.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for wallet, e := range s.entries {
		if now.Sub(e.issuedAt) > s.ttl {
			delete(s.entries, wallet)
		}
	}
}

// Start launches the expiry sweep loop. It runs until Stop is called.
func (s *Store) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Store) Stop() {
	close(s.stop)
	<-s.done
}
