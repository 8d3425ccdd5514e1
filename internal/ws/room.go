package ws

import (
	"sync"

	"tabletop-service/pkg/logger"

	"go.uber.org/zap"
)

type OutgoingMessage struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	FromID int64       `json:"fromId,omitempty"`
	Data   interface{} `json:"data"`
}

// room fans messages out to the connected participants of one game.
type room struct {
	gameID int64

	mu      sync.Mutex
	members map[int64]chan OutgoingMessage
}

type hub struct {
	mu    sync.Mutex
	rooms map[int64]*room
}

func newHub() *hub {
	return &hub{rooms: make(map[int64]*room)}
}

func (h *hub) room(gameID int64) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[gameID]
	if !ok {
		r = &room{
			gameID:  gameID,
			members: make(map[int64]chan OutgoingMessage),
		}
		h.rooms[gameID] = r
	}
	return r
}

func (h *hub) release(r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r.mu.Lock()
	empty := len(r.members) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, r.gameID)
	}
}

// subscribe registers the user and returns their outbound channel. A
// reconnect replaces the previous channel.
func (r *room) subscribe(userID int64) <-chan OutgoingMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.members[userID]; ok {
		close(old)
	}
	ch := make(chan OutgoingMessage, 32)
	r.members[userID] = ch
	return ch
}

func (r *room) unsubscribe(userID int64, ch <-chan OutgoingMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.members[userID]; ok && current == ch {
		close(current)
		delete(r.members, userID)
	}
}

// broadcast sends to every member except the sender. Slow consumers
// are dropped rather than blocking the room.
func (r *room) broadcast(fromID int64, msg OutgoingMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, ch := range r.members {
		if userID == fromID {
			continue
		}
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("dropping slow ws consumer",
				zap.Int64("gameID", r.gameID),
				zap.Int64("userID", userID),
			)
		}
	}
}
