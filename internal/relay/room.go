// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package relay implements the WebSocket fan-out server. Rooms group the
// live connections of one project; the relay forwards encrypted payloads
// between them and persists updates and snapshots without ever decrypting
// anything.
package relay

import "sync"

// Room holds the live connections joined to one project. A room exists
// while at least one connection references it; empty rooms linger until
// the next [Rooms.Sweep].
type Room struct {
	projectID string

	mu      sync.RWMutex
	members map[*client]struct{}
}

func newRoom(projectID string) *Room {
	return &Room{
		projectID: projectID,
		members:   make(map[*client]struct{}),
	}
}

func (r *Room) join(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c] = struct{}{}
}

func (r *Room) leave(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
}

// broadcast enqueues data to every member except from, returning the
// number of members reached. A room with only the sender delivers to
// nobody, which is fine: persistence, not presence, is the durability
// guarantee.
func (r *Room) broadcast(from *client, data []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for member := range r.members {
		if member == from {
			continue
		}
		member.enqueue(data)
		delivered++
	}
	return delivered
}

// size returns the current member count.
func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Rooms is the table of live rooms, keyed by project id.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRooms constructs an empty room table.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]*Room)}
}

func (t *Rooms) getOrCreate(projectID string) *Room {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[projectID]
	if !ok {
		room = newRoom(projectID)
		t.rooms[projectID] = room
	}
	return room
}

// Sweep drops every empty room and returns how many were removed. Nothing
// removes rooms implicitly; the server calls this on its cleanup interval.
// A project whose room was swept gets a fresh room on the next join.
func (t *Rooms) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, room := range t.rooms {
		if room.size() == 0 {
			delete(t.rooms, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live rooms, empty ones included.
func (t *Rooms) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
