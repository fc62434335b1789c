package chat

import (
	"context"

	"senat/internal/social"

	"github.com/valyala/fastjson"
)

type toPayload struct {
	To string `json:"to"`
}

func (h *Hub) sendFriends(username string) {
	f := h.social.Friends(username)
	h.toUser(username, EventFriendsUpdated, friendsPayload{
		Friends:    f.Friends,
		PendingIn:  f.PendingIn,
		PendingOut: f.PendingOut,
	})
}

func (h *Hub) sendFriendRequest(ctx context.Context, c *Client, d *fastjson.Value) error {
	to := str(d, "to")
	if err := h.social.SendRequest(ctx, c.username, to); err != nil {
		return err
	}
	h.send(c, EventFriendRequestSent, toPayload{To: to})
	h.sendFriends(c.username)

	if from, ok := h.users.Get(c.username); ok {
		h.toUser(to, EventFriendRequestReceived, friendRequestPayload{
			From:        from.Username,
			DisplayName: from.DisplayName,
			Avatar:      from.Avatar,
		})
	}
	h.sendFriends(to)
	return nil
}

func (h *Hub) acceptFriendRequest(ctx context.Context, c *Client, d *fastjson.Value) error {
	from := str(d, "from")
	if err := h.social.Accept(ctx, c.username, from); err != nil {
		return err
	}
	h.send(c, EventFriendRequestAccepted, usernamePayload{Username: from})
	h.toUser(from, EventFriendRequestAccepted, usernamePayload{Username: c.username})
	h.sendFriends(c.username)
	h.sendFriends(from)
	return nil
}

func (h *Hub) rejectFriendRequest(ctx context.Context, c *Client, d *fastjson.Value) error {
	from := str(d, "from")
	if err := h.social.Reject(ctx, c.username, from); err != nil {
		return err
	}
	h.send(c, EventFriendRequestRejected, usernamePayload{Username: from})
	h.toUser(from, EventFriendRequestRejected, usernamePayload{Username: c.username})
	h.sendFriends(c.username)
	h.sendFriends(from)
	return nil
}

func (h *Hub) blockUser(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	if err := h.social.Block(ctx, c.username, target); err != nil {
		return err
	}
	h.send(c, EventUserBlocked, usernamePayload{Username: target})
	h.sendFriends(c.username)
	h.sendFriends(target)
	return nil
}

func (h *Hub) unblockUser(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	if err := h.social.Unblock(ctx, c.username, target); err != nil {
		return err
	}
	h.send(c, EventUserUnblocked, usernamePayload{Username: target})
	return nil
}

func (h *Hub) banUser(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	ban, err := h.social.Ban(ctx, c.username, target, str(d, "reason"))
	if err != nil {
		return err
	}

	if tc, ok := h.online[target]; ok {
		h.send(tc, EventBanned, bannedPayload{Reason: ban.Reason, BannedBy: ban.BannedBy})
		h.evict(ctx, tc)
	}
	h.toAll(EventUserBanned, userBannedPayload{Username: target, Reason: ban.Reason})
	h.broadcastRoster()
	return nil
}

// evict drops a connection without the usual departure announcement.
func (h *Hub) evict(ctx context.Context, c *Client) {
	username := c.username
	h.leave(c)
	if h.online[username] == c {
		delete(h.online, username)
	}
	c.username, c.token = "", ""
	if username != "" {
		h.users.Touch(ctx, username)
	}
	if h.clients[c] {
		delete(h.clients, c)
		close(c.Send)
	}
	h.logger.Infow("connection evicted", "username", username, "client", c.ID)
}

func (h *Hub) unbanUser(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	if err := h.social.Unban(ctx, c.username, target); err != nil {
		return err
	}
	h.toAll(EventUserUnbanned, usernamePayload{Username: target})
	return nil
}

func (h *Hub) setAdmin(ctx context.Context, c *Client, d *fastjson.Value) error {
	if !h.users.IsAdmin(c.username) {
		return social.ErrForbidden
	}
	target := str(d, "username")
	admin := d.GetBool("is_admin")
	if target == c.username && !admin {
		return ErrSelfDemote
	}
	u, err := h.users.SetAdmin(ctx, target, admin)
	if err != nil {
		return err
	}
	h.toAll(EventAdminUpdated, adminPayload{Username: u.Username, IsAdmin: u.IsAdmin})
	h.broadcastRoster()
	return nil
}
