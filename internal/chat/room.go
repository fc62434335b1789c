package chat

import (
	"strings"

	"senat/internal/group"
)

const (
	GeneralRoom   = "general"
	privatePrefix = "private_"
)

// RoomKind selects the history bucket and access rule of a room.
type RoomKind int

const (
	PublicRoom RoomKind = iota
	PrivateRoomKind
	GroupRoom
)

// Resolve classifies room, mapping the empty name to the general room.
func Resolve(room string) (RoomKind, string) {
	room = strings.TrimSpace(room)
	switch {
	case room == "":
		return PublicRoom, GeneralRoom
	case strings.HasPrefix(room, privatePrefix):
		return PrivateRoomKind, room
	case group.IsGroupID(room):
		return GroupRoom, room
	default:
		return PublicRoom, room
	}
}

// PrivateRoom names the two-party room of a and b, independent of order.
func PrivateRoom(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return privatePrefix + a + "_" + b
}

// Participants splits a private room id. Usernames cannot contain '_' so the
// split is unambiguous.
func Participants(room string) (a, b string, ok bool) {
	rest := strings.TrimPrefix(room, privatePrefix)
	if rest == room {
		return "", "", false
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || parts[0] >= parts[1] {
		return "", "", false
	}
	return parts[0], parts[1], true
}
