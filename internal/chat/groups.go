package chat

import (
	"context"

	"senat/internal/group"

	"github.com/valyala/fastjson"
)

func (h *Hub) createGroup(ctx context.Context, c *Client, d *fastjson.Value) error {
	g := h.groups.Create(ctx, c.username, str(d, "name"))
	h.history.CreateGroup(ctx, g.ID)
	h.send(c, EventGroupCreated, g)
	return nil
}

func (h *Hub) getGroups(_ context.Context, c *Client, _ *fastjson.Value) error {
	h.send(c, EventGroupsList, h.groups.ListFor(c.username))
	return nil
}

func (h *Hub) addToGroup(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	g, added, err := h.groups.AddMember(ctx, c.username, str(d, "group_id"), target)
	if err != nil || !added {
		return err
	}
	h.toMembers(g, EventGroupMemberAdded, groupMemberPayload{GroupID: g.ID, Username: target, Group: g})
	return nil
}

func (h *Hub) removeFromGroup(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	g, err := h.groups.RemoveMember(ctx, c.username, str(d, "group_id"), target)
	if err != nil {
		return err
	}
	payload := groupMemberPayload{GroupID: g.ID, Username: target, Group: g}
	h.toMembers(g, EventGroupMemberRemoved, payload)

	if tc, ok := h.online[target]; ok {
		h.send(tc, EventGroupMemberRemoved, payload)
		if tc.room == g.ID {
			h.moveToGeneral(tc)
		}
	}
	return nil
}

func (h *Hub) updateGroup(ctx context.Context, c *Client, d *fastjson.Value) error {
	upd := group.Update{Name: optStr(d, "name"), Avatar: optStr(d, "avatar")}
	gid := str(d, "group_id")

	// Check rights before anything is written to the blob store.
	current, ok := h.groups.Get(gid)
	if !ok {
		return group.ErrNotFound
	}
	if !current.CanManage(c.username) {
		return group.ErrForbidden
	}
	if upd.Avatar != nil && isBinaryPayload(*upd.Avatar) && h.blobs != nil {
		ref, _, err := h.storeBlob(ctx, *upd.Avatar)
		if err != nil {
			return err
		}
		upd.Avatar = &ref
	}

	g, err := h.groups.Update(ctx, c.username, gid, upd)
	if err != nil {
		return err
	}
	h.toMembers(g, EventGroupUpdated, groupUpdatedPayload{GroupID: g.ID, Name: g.Name, Avatar: g.Avatar})
	return nil
}

func (h *Hub) deleteGroup(ctx context.Context, c *Client, d *fastjson.Value) error {
	g, err := h.groups.Delete(ctx, c.username, str(d, "group_id"))
	if err != nil {
		return err
	}
	h.history.DropGroup(ctx, g.ID)
	h.toMembers(g, EventGroupDeleted, groupDeletedPayload{GroupID: g.ID})

	for sub := range h.rooms[g.ID] {
		h.moveToGeneral(sub)
	}
	return nil
}

func (h *Hub) setGroupAdmin(ctx context.Context, c *Client, d *fastjson.Value) error {
	target := str(d, "username")
	g, err := h.groups.SetAdmin(ctx, c.username, str(d, "group_id"), target, d.GetBool("is_admin"))
	if err != nil {
		return err
	}
	h.toMembers(g, EventGroupAdminUpdated, groupAdminPayload{GroupID: g.ID, Username: target, IsAdmin: in(g.Admins, target), Group: g})
	return nil
}
