package match

import (
	"time"

	"tabletop-service/internal/model"
)

type QueueStatus string

const (
	QueueStatusIdle    QueueStatus = "idle"
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusMatched QueueStatus = "matched"
)

// QueueEntry is a waiting player. Rating is snapshotted at enqueue
// time and not refreshed while the player waits.
type QueueEntry struct {
	PlayerID   int64
	Rating     int
	GameType   string
	EnqueuedAt time.Time
}

type JoinResult struct {
	Status    QueueStatus `json:"status"`
	Game      *model.Game `json:"game,omitempty"`
	QueueSize int         `json:"queueSize,omitempty"`
}

type StatusResult struct {
	Status    QueueStatus `json:"status"`
	Game      *model.Game `json:"game,omitempty"`
	QueueSize int         `json:"queueSize,omitempty"`
}
