package app

import (
	"context"
	"sync"
	"time"

	"galleryrip/internal/domain"
)

type DownloadSettingsStore interface {
	Get(ctx context.Context) (domain.Settings, bool, error)
	Set(ctx context.Context, settings domain.Settings) error
}

// SettingsManager holds the live download settings. Updates are persisted
// first; the in-memory copy only changes after a successful write. onChange
// runs after every applied update so the scheduler can re-evaluate
// admissions.
type SettingsManager struct {
	mu       sync.RWMutex
	current  domain.Settings
	store    DownloadSettingsStore
	timeout  time.Duration
	onChange func()
}

func NewSettingsManager(store DownloadSettingsStore, onChange func()) *SettingsManager {
	return &SettingsManager{
		current:  domain.DefaultSettings(),
		store:    store,
		timeout:  5 * time.Second,
		onChange: onChange,
	}
}

// Load replaces the in-memory settings with the stored document when one
// exists. Called once on startup.
func (m *SettingsManager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	stored, ok, err := m.store.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	m.mu.Lock()
	m.current = stored.Normalize()
	m.mu.Unlock()
	return nil
}

func (m *SettingsManager) Settings() domain.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *SettingsManager) Update(settings domain.Settings) error {
	settings = settings.Normalize()

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.store.Set(ctx, settings); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.current = settings
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange()
	}
	return nil
}
