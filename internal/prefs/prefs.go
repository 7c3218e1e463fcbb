// Package prefs defines the user notification preference contract consumed
// by the scheduler, plus a static provider for development and a Redis
// cache layer for production lookups.
package prefs

import (
	"context"
	"sync"

	"github.com/sloreti/chime/internal/schedule"
)

// Preferences is a user's notification configuration.
type Preferences struct {
	Enabled    bool                `json:"enabled"`
	Categories map[string]bool     `json:"categories"`
	QuietHours schedule.QuietHours `json:"quiet_hours"`
}

// CategoryEnabled reports whether the user accepts the given category.
// Categories are opt-out: anything not explicitly disabled is allowed.
func (p *Preferences) CategoryEnabled(category string) bool {
	if p.Categories == nil {
		return true
	}
	enabled, ok := p.Categories[category]
	return !ok || enabled
}

// Provider resolves user preferences. Implementations are external to the
// scheduling core; the scheduler only consumes this interface.
type Provider interface {
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
}

// StaticProvider is an in-memory Provider. Users without an explicit entry
// get the default preferences.
type StaticProvider struct {
	mu       sync.RWMutex
	users    map[string]*Preferences
	fallback Preferences
}

// NewStaticProvider creates a provider whose unknown users receive
// all-enabled preferences with quiet hours off.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		users:    make(map[string]*Preferences),
		fallback: Preferences{Enabled: true},
	}
}

// Set registers preferences for a user.
func (s *StaticProvider) Set(userID string, p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = &p
}

// SetDefault replaces the fallback returned for unknown users.
func (s *StaticProvider) SetDefault(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = p
}

func (s *StaticProvider) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.users[userID]; ok {
		cp := *p
		return &cp, nil
	}
	cp := s.fallback
	return &cp, nil
}
