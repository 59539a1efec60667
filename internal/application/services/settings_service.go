// Package services provides the analytics pipeline orchestration layer.
package services

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	repositories "github.com/AmPepSoc/analytics-go/internal/infrastructure/persistence/analytics"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// SettingsService serves the runtime analytics configuration as an
// immutable snapshot, refreshed from the database at most once per TTL.
// Readers always get a coherent snapshot; a failed refresh keeps serving
// the previous one.
type SettingsService struct {
	repo     *repositories.SQLSettingsRepository
	logger   *logging.ChanneledLogger
	snapshot atomic.Pointer[analytics.Settings]
	ttl      time.Duration

	refreshMu   sync.Mutex
	lastRefresh atomic.Int64 // unix nanos of last successful refresh
}

// NewSettingsService creates the settings service and loads the initial
// snapshot.
func NewSettingsService(repo *repositories.SQLSettingsRepository, logger *logging.ChanneledLogger) (*SettingsService, error) {
	s := &SettingsService{
		repo:   repo,
		logger: logger,
		ttl:    config.SettingsRefreshTTL,
	}
	settings, err := repo.Load()
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(settings)
	s.lastRefresh.Store(time.Now().UnixNano())
	return s, nil
}

// Current returns the active settings snapshot, refreshing it lazily
// when stale. The returned value must be treated as read-only.
func (s *SettingsService) Current() *analytics.Settings {
	if time.Since(time.Unix(0, s.lastRefresh.Load())) > s.ttl {
		s.refresh()
	}
	return s.snapshot.Load()
}

func (s *SettingsService) refresh() {
	// One goroutine refreshes; everyone else keeps the old snapshot.
	if !s.refreshMu.TryLock() {
		return
	}
	defer s.refreshMu.Unlock()

	if time.Since(time.Unix(0, s.lastRefresh.Load())) <= s.ttl {
		return
	}

	settings, err := s.repo.Load()
	if err != nil {
		s.logger.System().Warn("Settings refresh failed, keeping previous snapshot", "error", err.Error())
		// Push the next attempt out a full TTL so a broken database
		// doesn't turn every request into a settings query.
		s.lastRefresh.Store(time.Now().UnixNano())
		return
	}

	s.snapshot.Store(settings)
	s.lastRefresh.Store(time.Now().UnixNano())
	s.logger.System().Debug("Settings snapshot refreshed", "updatedAt", settings.UpdatedAt)
}

// Update persists new settings and swaps the snapshot immediately.
func (s *SettingsService) Update(settings *analytics.Settings) error {
	settings.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(settings); err != nil {
		return err
	}
	s.snapshot.Store(settings)
	s.lastRefresh.Store(time.Now().UnixNano())
	return nil
}
