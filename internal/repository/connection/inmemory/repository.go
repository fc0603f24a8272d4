package inmemory

import (
	"sync"

	"github.com/selfcinema/server/internal/repository/connection"
)

// repo tracks which websocket connections are listening to which room so the
// notifier can nudge every poller of a room after a state change.
type repo struct {
	roomList map[string]map[*connection.Conn]struct{}
	connList map[*connection.Conn]string
	mu       sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		roomList: make(map[string]map[*connection.Conn]struct{}),
		connList: make(map[*connection.Conn]string),
	}
}

func (r *repo) Add(conn *connection.Conn, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connList[conn]; ok {
		return connection.ErrAlreadyExists
	}

	conns, ok := r.roomList[roomID]
	if !ok {
		conns = make(map[*connection.Conn]struct{})
		r.roomList[roomID] = conns
	}

	conns[conn] = struct{}{}
	r.connList[conn] = roomID

	return nil
}

func (r *repo) RemoveByConn(conn *connection.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.connList[conn]
	if !ok {
		return connection.ErrNotFound
	}
	conn.Close()

	delete(r.connList, conn)
	delete(r.roomList[roomID], conn)
	if len(r.roomList[roomID]) == 0 {
		delete(r.roomList, roomID)
	}

	return nil
}

func (r *repo) GetConnsByRoomID(roomID string) []*connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*connection.Conn, 0, len(r.roomList[roomID]))
	for conn := range r.roomList[roomID] {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.roomList)
}
