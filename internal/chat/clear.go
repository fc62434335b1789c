package chat

// ClearNegotiator tracks pending requests to wipe a private room. Requests
// live in memory only.
type ClearNegotiator struct {
	pending map[string]string // private room -> requester
}

func NewClearNegotiator() *ClearNegotiator {
	return &ClearNegotiator{pending: make(map[string]string)}
}

// Request records requester's consent to clear the room shared with other.
// It reports true once both participants have asked; the pending request is
// consumed at that point. A repeated call by the same requester keeps the
// request pending.
func (n *ClearNegotiator) Request(requester, other string) bool {
	room := PrivateRoom(requester, other)
	first, ok := n.pending[room]
	if !ok || first == requester {
		n.pending[room] = requester
		return false
	}
	delete(n.pending, room)
	return true
}

// Pending returns who asked to clear room, if anyone.
func (n *ClearNegotiator) Pending(room string) (string, bool) {
	r, ok := n.pending[room]
	return r, ok
}
