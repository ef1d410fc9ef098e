package domain

import (
	"errors"
	"time"
)

// HostID identifies an image host. Each id maps to exactly one resolver.
type HostID byte

// PostRecord is a gallery/thread submission grouping one or more images.
type PostRecord struct {
	ID                string    `json:"id"`
	ThreadID          string    `json:"threadId"`
	PostID            string    `json:"postId"`
	Title             string    `json:"title"`
	Forum             string    `json:"forum"`
	URL               string    `json:"url"`
	Token             string    `json:"-"`
	Total             int       `json:"total"`
	Hosts             []string  `json:"hosts"`
	DownloadDirectory string    `json:"downloadDirectory"`
	FolderName        string    `json:"folderName"`
	Status            Status    `json:"status"`
	Done              int       `json:"done"`
	Size              int64     `json:"size"`
	Downloaded        int64     `json:"downloaded"`
	AddedAt           time.Time `json:"addedAt"`
}

// Validate checks domain invariants for PostRecord.
func (p PostRecord) Validate() error {
	if p.ID == "" {
		return errors.New("post id is required")
	}
	if p.Total < 0 {
		return errors.New("total must not be negative")
	}
	if p.Done < 0 {
		return errors.New("done must not be negative")
	}
	if p.Done > p.Total {
		return errors.New("done must not exceed total")
	}
	if p.Status == StatusFinished && p.Done != p.Total {
		return errors.New("finished post must have done == total")
	}
	if p.DownloadDirectory == "" {
		return errors.New("download directory is required")
	}
	return validStatus(p.Status)
}

func validStatus(s Status) error {
	switch s {
	case StatusPending, StatusDownloading, StatusFinished, StatusError, StatusStopped:
		return nil
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(s))
	}
}
