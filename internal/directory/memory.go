// Package directory provides Connection Directory backends. Both keep the
// same dual index: room -> member set and connection -> room set, mutated
// together so disconnect cleanup never needs a full scan.
package directory

import (
	"context"
	"sync"

	"github.com/peersignal/relay/internal/core"
	"github.com/peersignal/relay/internal/domain"
)

type set[K comparable] map[K]struct{}

// Memory is a threadsafe in-process directory.
type Memory struct {
	mu     sync.RWMutex
	byRoom map[domain.RoomID]set[domain.ConnID]
	byConn map[domain.ConnID]set[domain.RoomID]
}

func NewMemory() *Memory {
	return &Memory{
		byRoom: make(map[domain.RoomID]set[domain.ConnID]),
		byConn: make(map[domain.ConnID]set[domain.RoomID]),
	}
}

func (m *Memory) AddMember(_ context.Context, room domain.RoomID, conn domain.ConnID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRoom[room]; !ok {
		m.byRoom[room] = make(set[domain.ConnID])
	}
	m.byRoom[room][conn] = struct{}{}
	if _, ok := m.byConn[conn]; !ok {
		m.byConn[conn] = make(set[domain.RoomID])
	}
	m.byConn[conn][room] = struct{}{}
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, room domain.RoomID, conn domain.ConnID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if members, ok := m.byRoom[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(m.byRoom, room)
		}
	}
	if rooms, ok := m.byConn[conn]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(m.byConn, conn)
		}
	}
	return nil
}

func (m *Memory) Members(_ context.Context, room domain.RoomID) ([]domain.ConnID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.byRoom[room]
	out := make([]domain.ConnID, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out, nil
}

func (m *Memory) RoomsContaining(_ context.Context, conn domain.ConnID) ([]domain.RoomID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := m.byConn[conn]
	out := make([]domain.RoomID, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	return out, nil
}

func (m *Memory) Rooms(_ context.Context) ([]core.RoomInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.byRoom))
	for room, members := range m.byRoom {
		out = append(out, core.RoomInfo{ID: room, MemberCount: len(members)})
	}
	return out, nil
}
