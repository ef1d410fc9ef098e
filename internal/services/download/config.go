package download

import (
	"log/slog"

	"github.com/spf13/afero"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// SettingsProvider exposes the current download settings. Each task captures
// a copy at launch; the scheduler re-reads on every admission pass.
type SettingsProvider interface {
	Settings() domain.Settings
}

// Config wires the download service to its collaborators.
type Config struct {
	Store    ports.DataStore
	Registry ports.ResolverRegistry
	Fetcher  ports.Fetcher
	Events   ports.EventSink
	Notifier ports.SourceNotifier
	Settings SettingsProvider
	FS       afero.Fs
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.FS == nil {
		c.FS = afero.NewOsFs()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Events == nil {
		c.Events = noopSink{}
	}
	return c
}

type noopSink struct{}

func (noopSink) Publish(any) {}
