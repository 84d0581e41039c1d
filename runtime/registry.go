// Package runtime handles connection membership and supervised background
// work. It carries no business rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"
)

type Set map[string]struct{}

// Registry maps live connections to the rooms they joined. A connection may
// be a member of any number of rooms at once; a room exists exactly as long
// as its member set is non-empty.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // connID -> sink
	roomMembers map[domain.RoomID]Set         // roomID -> connIDs

	// joinedRooms is the reverse index, kept so Disconnect can clean a
	// connection out of every room without scanning them all.
	joinedRooms map[string]map[domain.RoomID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[domain.RoomID]Set),
		joinedRooms: make(map[string]map[domain.RoomID]struct{}),
	}
}

// Register records the sink of a freshly accepted connection. The connection
// is not a member of any room until it joins one.
func (r *Registry) Register(connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = sink
}

// Join adds a connection to a room, creating the room on the fly.
// Joining a room twice has no additional effect.
func (r *Registry) Join(connID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		// Unknown connection: nothing to attach the membership to.
		return
	}

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connID] = struct{}{}

	if _, ok := r.joinedRooms[connID]; !ok {
		r.joinedRooms[connID] = make(map[domain.RoomID]struct{})
	}
	r.joinedRooms[connID][roomID] = struct{}{}
}

// Leave removes a connection from one room. The room entry itself is dropped
// once its last member leaves, so empty rooms never accumulate.
func (r *Registry) Leave(connID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomID)
}

func (r *Registry) leaveLocked(connID string, roomID domain.RoomID) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	if rooms, ok := r.joinedRooms[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joinedRooms, connID)
		}
	}
}

// Disconnect removes a connection from every room it joined and drops its
// session. Cleanup is immediate and synchronous: once Disconnect returns no
// broadcast can reach the connection anymore.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joinedRooms[connID] {
		r.leaveLocked(connID, roomID)
	}
	delete(r.joinedRooms, connID)
	delete(r.sessions, connID)
}

// SinksForRoom resolves the current member set of a room into sinks.
// The snapshot is taken under the read lock, so it is consistent with any
// join or leave that completed before the call began.
// Returns nil if the room doesn't exist.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	activeSinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if sink, exists := r.sessions[connID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// RoomSize reports the number of members currently joined to a room.
func (r *Registry) RoomSize(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers[roomID])
}
