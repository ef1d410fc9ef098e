package domain

import "errors"

// QueueElement is the lightweight admission-queue reference to an image.
// The full record stays in the store until the element is accepted.
type QueueElement struct {
	ImageID      string `json:"imageId"`
	PostRecordID string `json:"postRecordId"`
	Host         HostID `json:"host"`
}

// Rank is the display-only position of a post batch in the pending queue.
type Rank struct {
	PostRecordID string `json:"postRecordId"`
	Position     int    `json:"position"`
}

// QueueState is a point-in-time snapshot of the admission queue.
type QueueState struct {
	Running   int    `json:"running"`
	Remaining int    `json:"remaining"`
	Rank      []Rank `json:"rank"`
}

// MovePosition describes how a pending batch is reordered.
type MovePosition string

const (
	MoveUp     MovePosition = "up"
	MoveDown   MovePosition = "down"
	MoveTop    MovePosition = "top"
	MoveBottom MovePosition = "bottom"
)

// ParseMovePosition validates a raw move position value.
func ParseMovePosition(value string) (MovePosition, error) {
	switch MovePosition(value) {
	case MoveUp, MoveDown, MoveTop, MoveBottom:
		return MovePosition(value), nil
	default:
		return "", errors.New("invalid move position: " + value)
	}
}
