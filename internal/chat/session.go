package chat

import (
	"context"
	"fmt"
	"strings"

	"senat/internal/apperr"
	"senat/internal/social"
	"senat/internal/user"

	"github.com/valyala/fastjson"
)

const searchLimit = 20

var (
	ErrAlreadyLoggedIn = apperr.New(apperr.StateConflict, "this connection is already logged in")
	ErrAutoLogin       = apperr.Ignored(apperr.Authorization, "auto login rejected")
	ErrSelfDemote      = apperr.New(apperr.Validation, "you cannot drop your own admin role")
	ErrNotAFile        = apperr.New(apperr.Validation, "file data must be a data uri")
)

func str(d *fastjson.Value, key string) string {
	return strings.TrimSpace(string(d.GetStringBytes(key)))
}

// optStr returns nil when key is absent or null.
func optStr(d *fastjson.Value, key string) *string {
	v := d.Get(key)
	if v == nil || v.Type() != fastjson.TypeString {
		return nil
	}
	s := string(v.GetStringBytes())
	return &s
}

func int64Field(d *fastjson.Value, key string) (int64, bool) {
	v := d.Get(key)
	if v == nil || v.Type() != fastjson.TypeNumber {
		return 0, false
	}
	if n, err := v.Int64(); err == nil {
		return n, true
	}
	f, err := v.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

func (h *Hub) register(ctx context.Context, c *Client, d *fastjson.Value) error {
	req := &user.RegisterRequest{
		Username:    str(d, "username"),
		Password:    string(d.GetStringBytes("password")),
		DisplayName: str(d, "display_name"),
		Avatar:      str(d, "avatar"),
	}
	if cr := credentialsFrom(ctx, EventRegister); cr != nil {
		req.PasswordHash = cr.hash
	}
	u, err := h.users.Register(ctx, req)
	if err != nil {
		return err
	}
	h.send(c, EventRegisterSuccess, usernamePayload{Username: u.Username})
	return nil
}

func (h *Hub) login(ctx context.Context, c *Client, d *fastjson.Value) error {
	if c.username != "" {
		return ErrAlreadyLoggedIn
	}
	username := str(d, "username")
	password := string(d.GetStringBytes("password"))
	if username == "" || password == "" {
		return user.ErrMissingFields
	}
	if !h.users.Exists(username) {
		return user.ErrUserNotFound
	}
	if h.social.IsBanned(username) {
		return social.ErrBanned
	}
	u, err := h.authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if _, ok := h.online[username]; ok {
		return user.ErrAlreadyOnline
	}

	var token string
	if d.GetBool("remember") {
		if token, err = h.users.IssueToken(ctx, username); err != nil {
			h.logger.Errorw("issue remember token", "username", username, "error", err)
			token = ""
		}
	}
	h.bind(ctx, c, *u, token, fmt.Sprintf("✨ %s (@%s) joined", u.DisplayName, u.Username))
	return nil
}

// authenticate trusts the comparison made by precompute only while the hash
// it used is still the stored one.
func (h *Hub) authenticate(ctx context.Context, username, password string) (*user.User, error) {
	cr := credentialsFrom(ctx, EventLogin)
	if cur, ok := h.users.Get(username); ok && cr != nil && cr.hash == cur.PasswordHash {
		if !cr.match {
			return nil, user.ErrInvalidCredential
		}
		return &cur, nil
	}
	return h.users.Authenticate(username, password)
}

func (h *Hub) autoLogin(ctx context.Context, c *Client, d *fastjson.Value) error {
	if c.username != "" {
		return ErrAutoLogin
	}
	token := str(d, "token")
	username, err := h.users.ValidateToken(token)
	if err != nil {
		return ErrAutoLogin
	}
	if h.social.IsBanned(username) {
		return ErrAutoLogin
	}
	if _, ok := h.online[username]; ok {
		return ErrAutoLogin
	}
	u, ok := h.users.Get(username)
	if !ok {
		return ErrAutoLogin
	}
	h.bind(ctx, c, u, token, fmt.Sprintf("✨ Welcome back, %s (@%s)!", u.DisplayName, u.Username))
	return nil
}

// bind attaches an authenticated user to c and runs the login sequence.
func (h *Hub) bind(ctx context.Context, c *Client, u user.User, token, greeting string) {
	c.username = u.Username
	c.token = token
	h.online[u.Username] = c
	h.users.Touch(ctx, u.Username)
	h.join(c, GeneralRoom)

	h.sendHistory(c, GeneralRoom)

	f := h.social.Friends(u.Username)
	h.send(c, EventLoginSuccess, loginPayload{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		IsAdmin:     u.IsAdmin,
		Friends:     f.Friends,
		PendingIn:   f.PendingIn,
		PendingOut:  f.PendingOut,
		Blocked:     h.social.Blocked(u.Username),
		Token:       token,
	})
	h.toRoom(GeneralRoom, EventMessage, systemMessage(GeneralRoom, greeting, h.now()))
	h.broadcastRoster()
	h.send(c, EventAllUsers, h.directory(u.Username, "", 0))

	h.logger.Infow("user logged in", "username", u.Username, "client", c.ID, "remember", token != "")
}

// detach logs the user bound to c out, leaving the connection open.
func (h *Hub) detach(ctx context.Context, c *Client) {
	if c.username == "" {
		return
	}
	username := c.username
	h.leave(c)
	if h.online[username] == c {
		delete(h.online, username)
	}
	c.username, c.token = "", ""
	h.users.Touch(ctx, username)

	displayName := username
	if u, ok := h.users.Get(username); ok {
		displayName = u.DisplayName
	}
	h.toRoom(GeneralRoom, EventMessage, systemMessage(GeneralRoom, fmt.Sprintf("👋 %s (@%s) left the chat", displayName, username), h.now()))
	h.broadcastRoster()
	h.logger.Infow("user left", "username", username, "client", c.ID)
}

func (h *Hub) logout(ctx context.Context, c *Client, d *fastjson.Value) error {
	token := c.token
	if t := str(d, "token"); t != "" {
		token = t
	}
	if token != "" {
		h.users.RevokeToken(ctx, token)
	}
	h.detach(ctx, c)
	h.send(c, EventLoggedOut, struct{}{})
	return nil
}

// directory lists users other than viewer, annotated with viewer's relation
// to each. Banned users are left out.
func (h *Hub) directory(viewer, query string, limit int) []directoryEntry {
	f := h.social.Friends(viewer)
	entries := []directoryEntry{}
	for _, u := range h.users.Search(query, viewer, 0) {
		if h.social.IsBanned(u.Username) {
			continue
		}
		_, online := h.online[u.Username]
		entries = append(entries, directoryEntry{
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Avatar:      u.Avatar,
			IsFriend:    in(f.Friends, u.Username),
			IsBlocked:   h.social.Blocks(viewer, u.Username),
			PendingOut:  in(f.PendingOut, u.Username),
			PendingIn:   in(f.PendingIn, u.Username),
			Online:      online,
			LastSeen:    u.LastSeen,
		})
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries
}

func (h *Hub) searchUsers(_ context.Context, c *Client, d *fastjson.Value) error {
	query := str(d, "query")
	limit := searchLimit
	if query == "" {
		limit = 0
	}
	h.send(c, EventSearchResults, h.directory(c.username, query, limit))
	return nil
}

func (h *Hub) updateProfile(ctx context.Context, c *Client, d *fastjson.Value) error {
	u, err := h.users.UpdateProfile(ctx, c.username, user.ProfileUpdate{
		DisplayName: optStr(d, "display_name"),
		Avatar:      optStr(d, "avatar"),
	})
	if err != nil {
		return err
	}
	h.toAll(EventProfileUpdated, profilePayload{Username: u.Username, DisplayName: u.DisplayName, Avatar: u.Avatar})
	h.broadcastRoster()
	return nil
}

// saveFile echoes an attachment back so the client can offer it as a download.
func (h *Hub) saveFile(_ context.Context, c *Client, d *fastjson.Value) error {
	data := string(d.GetStringBytes("file_data"))
	if !strings.HasPrefix(data, "data:") {
		return ErrNotAFile
	}
	name := str(d, "filename")
	if name == "" {
		name = "file"
	}
	h.send(c, EventFileSaved, fileSavedPayload{FileData: data, Filename: name})
	return nil
}

func in(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
