package ports

import "galleryrip/internal/domain"

// EventSink receives live progress notifications. Publish must never block
// the caller; slow consumers drop events.
type EventSink interface {
	Publish(event any)
}

// SourceNotifier receives the fire-and-forget courtesy acknowledgement sent
// to the source site when a post first starts downloading. Implementations
// run outside the download core; failures are logged, never propagated.
type SourceNotifier interface {
	NotifyStarted(post domain.PostRecord)
}
