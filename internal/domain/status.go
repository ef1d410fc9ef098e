package domain

// Status applies to both posts and their images. For a post it is the
// aggregate of its images as computed by reconciliation.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
	StatusStopped     Status = "stopped"
)

// Completed reports whether the entity needs no further download work.
// Error and Stopped are terminal for the current run but restartable.
func (s Status) Completed() bool {
	return s == StatusFinished
}

// Restartable reports whether a restart may reset the entity to pending.
func (s Status) Restartable() bool {
	return s == StatusError || s == StatusStopped
}
