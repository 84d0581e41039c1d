// Package domain contains core concepts of the chat relay.
package domain

// RoomID identifies a broadcast group. Rooms are purely derived state:
// one exists exactly as long as at least one connection is joined to it,
// and nothing about a room is ever persisted.
type RoomID string
