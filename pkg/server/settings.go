package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bastiangx/kiltman/pkg/analysis"
	"github.com/bastiangx/kiltman/pkg/config"
	"golang.org/x/time/rate"
)

var (
	ErrMissingQuery  = errors.New("missing query")
	ErrQueryTooLong  = errors.New("query too long")
	ErrMalformedText = errors.New("malformed text")
)

// Settings holds the live server options. Update swaps them atomically, so a
// config reload takes effect on the next request.
type Settings struct {
	current atomic.Pointer[config.ServerConfig]
	limiter *rate.Limiter
}

// NewSettings creates settings from sc.
func NewSettings(sc config.ServerConfig) *Settings {
	s := &Settings{limiter: rate.NewLimiter(rate.Limit(sc.RequestsPerSecond), sc.Burst)}
	s.current.Store(&sc)
	return s
}

// Get returns the options in effect.
func (s *Settings) Get() config.ServerConfig {
	return *s.current.Load()
}

// Update replaces the options and retunes the rate limiter.
func (s *Settings) Update(sc config.ServerConfig) {
	s.current.Store(&sc)
	s.limiter.SetLimit(rate.Limit(sc.RequestsPerSecond))
	s.limiter.SetBurst(sc.Burst)
}

// Allow reports whether one more request may pass the rate limit now.
func (s *Settings) Allow() bool {
	return s.limiter.Allow()
}

func (s *Settings) checkQuery(q string) error {
	if q == "" {
		return ErrMissingQuery
	}
	if maxLen := s.Get().MaxQueryLen; len(q) > maxLen {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrQueryTooLong, len(q), maxLen)
	}
	return nil
}

func (s *Settings) checkWords(words []analysis.Word) error {
	if len(words) == 0 {
		return ErrMissingQuery
	}
	total := 0
	for _, w := range words {
		total += len(w.Word) + 1
	}
	if maxLen := s.Get().MaxQueryLen; total > maxLen {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrQueryTooLong, total, maxLen)
	}
	return nil
}

// limit caps a requested suggestion count at the configured maximum.
func (s *Settings) limit(requested int) int {
	maxN := s.Get().MaxSuggestions
	if requested <= 0 || requested > maxN {
		return maxN
	}
	return requested
}

// malformed wraps a codec error so handlers can map it to a client error.
func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedText, err)
}
