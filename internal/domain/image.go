package domain

import "errors"

// SizeUnknown marks an image whose byte size has not been resolved yet.
const SizeUnknown int64 = -1

// ImageRecord is a single downloadable image belonging to a post.
type ImageRecord struct {
	ID           string `json:"id"`
	PostRecordID string `json:"postRecordId"`
	URL          string `json:"url"`
	ThumbURL     string `json:"thumbUrl"`
	Host         HostID `json:"host"`
	Index        int    `json:"index"`
	Size         int64  `json:"size"`
	Downloaded   int64  `json:"downloaded"`
	Status       Status `json:"status"`
	Filename     string `json:"filename"`
}

// Validate checks domain invariants for ImageRecord.
func (i ImageRecord) Validate() error {
	if i.ID == "" {
		return errors.New("image id is required")
	}
	if i.PostRecordID == "" {
		return errors.New("image post id is required")
	}
	if i.URL == "" {
		return errors.New("image url is required")
	}
	if i.Index < 0 {
		return errors.New("index must not be negative")
	}
	if i.Size < SizeUnknown {
		return errors.New("size must be -1 or greater")
	}
	if i.Size >= 0 && i.Downloaded > i.Size {
		return errors.New("downloaded must not exceed size")
	}
	if i.Status == StatusFinished && (i.Size <= 0 || i.Downloaded != i.Size) {
		return errors.New("finished image must have downloaded == size > 0")
	}
	return validStatus(i.Status)
}
