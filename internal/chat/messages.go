package chat

import (
	"context"
	"fmt"
	"strings"

	"senat/internal/apperr"
	"senat/internal/blob"
	"senat/internal/social"
	"senat/internal/user"

	"github.com/valyala/fastjson"
)

var (
	ErrEmptyMessage    = apperr.New(apperr.Validation, "message is empty")
	ErrPayloadTooLarge = apperr.New(apperr.Capacity, "file is too large")
	ErrNoAccess        = apperr.New(apperr.Authorization, "you have no access to this room")
	ErrBadAttachment   = apperr.New(apperr.Validation, "attachment is not valid base64")
	ErrClearSelf       = apperr.New(apperr.Validation, "pick another user to clear the chat with")
	errRoomIgnored     = apperr.Ignored(apperr.NotFound, "room not accessible")
)

var binaryPrefixes = []string{"data:image", "data:video", "data:audio", "data:application"}

func isBinaryPayload(s string) bool {
	for _, p := range binaryPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// canRead checks whether username may see room.
func (h *Hub) canRead(username string, kind RoomKind, room string) error {
	switch kind {
	case PrivateRoomKind:
		a, b, ok := Participants(room)
		if !ok || (username != a && username != b) {
			return ErrNoAccess
		}
	case GroupRoom:
		if !h.groups.IsMember(room, username) {
			return ErrNoAccess
		}
	}
	return nil
}

func (h *Hub) canPublish(username string, kind RoomKind, room string) error {
	if err := h.canRead(username, kind, room); err != nil {
		return err
	}
	if kind == PrivateRoomKind {
		a, b, _ := Participants(room)
		if h.social.EitherBlocks(a, b) {
			return social.ErrBlocked
		}
	}
	return nil
}

func (h *Hub) storeBlob(ctx context.Context, dataURI string) (ref, contentType string, err error) {
	data, contentType, err := blob.DecodeDataURI(dataURI)
	if err != nil {
		return "", "", ErrBadAttachment
	}
	ref, err = h.blobs.Put(ctx, data, contentType)
	if err != nil {
		return "", "", fmt.Errorf("store attachment: %w", err)
	}
	return ref, contentType, nil
}

func (h *Hub) publish(ctx context.Context, c *Client, d *fastjson.Value) error {
	if h.social.IsBanned(c.username) {
		return social.ErrBanned
	}
	text := string(d.GetStringBytes("msg"))
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	binary := isBinaryPayload(text)
	if binary && len(text) > h.maxPayload {
		return ErrPayloadTooLarge
	}
	kind, room := Resolve(str(d, "room"))
	if err := h.canPublish(c.username, kind, room); err != nil {
		return err
	}
	author, ok := h.users.Get(c.username)
	if !ok {
		return user.ErrUserNotFound
	}

	now := h.now()
	m := &Message{
		Room:        room,
		Username:    author.Username,
		DisplayName: author.DisplayName,
		Avatar:      author.Avatar,
		IsAdmin:     author.IsAdmin,
		Text:        text,
		Time:        now.Format(timeLayout),
	}
	if id, ok := int64Field(d, "reply_to"); ok {
		m.ReplyTo = &id
	}
	if binary && h.blobs != nil {
		ref, contentType, err := h.storeBlob(ctx, text)
		if err != nil {
			return err
		}
		m.Text, m.ContentType = ref, contentType
	}

	h.history.Append(ctx, m, now)
	h.toRoom(room, EventMessage, m)
	return nil
}

func (h *Hub) editMessage(ctx context.Context, c *Client, d *fastjson.Value) error {
	id, ok := int64Field(d, "id")
	if !ok {
		return ErrMessageNotFound
	}
	text := string(d.GetStringBytes("new_text"))
	if strings.TrimSpace(text) == "" {
		return ErrMessageNotFound
	}
	kind, room := Resolve(str(d, "room"))
	if err := h.canRead(c.username, kind, room); err != nil {
		return ErrMessageNotFound
	}

	m, err := h.history.Edit(ctx, room, id, c.username, text, h.now())
	if err != nil {
		return err
	}
	h.toRoom(room, EventMessageEdited, messageEditedPayload{ID: m.ID, NewText: m.Text, Room: room, EditTime: m.EditTime})
	return nil
}

func (h *Hub) deleteMessage(ctx context.Context, c *Client, d *fastjson.Value) error {
	id, ok := int64Field(d, "id")
	if !ok {
		return ErrMessageNotFound
	}
	kind, room := Resolve(str(d, "room"))
	admin := h.users.IsAdmin(c.username)
	if !admin {
		if err := h.canRead(c.username, kind, room); err != nil {
			return ErrMessageNotFound
		}
	}

	if _, err := h.history.Delete(ctx, room, id, c.username, admin); err != nil {
		return err
	}
	h.toRoom(room, EventMessageDeleted, messageDeletedPayload{ID: id, Room: room})
	return nil
}

func (h *Hub) requestClearChat(ctx context.Context, c *Client, d *fastjson.Value) error {
	other := str(d, "with_user")
	if other == "" || other == c.username {
		return ErrClearSelf
	}
	if !h.users.Exists(other) {
		return user.ErrUserNotFound
	}
	room := PrivateRoom(c.username, other)

	if !h.clears.Request(c.username, other) {
		h.toUser(other, EventClearChatRequested, clearRequestPayload{From: c.username, Chat: room})
		return nil
	}

	h.history.Clear(ctx, room)
	cleared := chatClearedPayload{Chat: room}
	h.toUser(c.username, EventChatCleared, cleared)
	h.toUser(other, EventChatCleared, cleared)
	h.logger.Infow("private chat cleared", "room", room)
	return nil
}

func (h *Hub) joinRoom(_ context.Context, c *Client, d *fastjson.Value) error {
	kind, room := Resolve(str(d, "room"))
	if room == c.room {
		return nil
	}
	if err := h.canRead(c.username, kind, room); err != nil {
		return errRoomIgnored
	}
	h.join(c, room)
	h.sendHistory(c, room)
	return nil
}

func (h *Hub) getHistory(_ context.Context, c *Client, d *fastjson.Value) error {
	kind, room := Resolve(str(d, "room"))
	if err := h.canRead(c.username, kind, room); err != nil {
		return errRoomIgnored
	}
	h.sendHistory(c, room)
	return nil
}
