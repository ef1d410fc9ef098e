package domain

// StoppedAll is the sentinel id published when a stop was not scoped to
// specific posts.
const StoppedAll = "-1"

type PostCreatedEvent struct {
	Post PostRecord `json:"post"`
}

type PostUpdatedEvent struct {
	Post PostRecord `json:"post"`
}

type PostDeletedEvent struct {
	PostRecordIDs []string `json:"postRecordIds"`
}

type ImageUpdatedEvent struct {
	Image ImageRecord `json:"image"`
}

type QueueStateEvent struct {
	State QueueState `json:"state"`
}

// ErrorCountEvent carries the number of images in error across all posts.
type ErrorCountEvent struct {
	Count int64 `json:"count"`
}

type StoppedEvent struct {
	PostRecordIDs []string `json:"postRecordIds"`
}
