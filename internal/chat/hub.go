// Package chat routes websocket events between connected users. A single
// Hub goroutine owns presence, rooms and every service it calls, so each
// inbound event is applied and broadcast as one atomic step.
package chat

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"senat/internal/apperr"
	"senat/internal/blob"
	"senat/internal/group"
	"senat/internal/social"
	"senat/internal/user"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// MaxPayloadBytes caps embedded data-URI attachments.
const MaxPayloadBytes = 70 * 1024 * 1024

var emptyObject = fastjson.MustParse(`{}`)

type inbound struct {
	client *Client
	raw    []byte
	creds  *credentials
}

// credentials holds the bcrypt work for a login or register frame, done on
// the connection's read goroutine so the hub loop never waits on it.
type credentials struct {
	event string
	// hash is the stored hash a login password was compared against, or the
	// freshly hashed password of a register frame.
	hash  string
	match bool
}

type credentialsKey struct{}

func credentialsFrom(ctx context.Context, event string) *credentials {
	cr, _ := ctx.Value(credentialsKey{}).(*credentials)
	if cr == nil || cr.event != event {
		return nil
	}
	return cr
}

type handlerFunc func(ctx context.Context, c *Client, d *fastjson.Value) error

type route struct {
	// errEvent receives surfaced errors; empty means errors are only logged.
	errEvent string
	// auth routes are dropped for connections that have not logged in.
	auth bool
	fn   handlerFunc
}

type Option interface {
	apply(*Hub)
}

type optionFunc func(h *Hub)

func (f optionFunc) apply(h *Hub) { f(h) }

// Blobs stores data-URI attachments and group avatars outside the history.
func Blobs(b blob.Store) Option {
	return optionFunc(func(h *Hub) {
		h.blobs = b
	})
}

// Clock overrides time.Now.
func Clock(now func() time.Time) Option {
	return optionFunc(func(h *Hub) {
		h.now = now
	})
}

// MaxPayload overrides MaxPayloadBytes.
func MaxPayload(n int) Option {
	return optionFunc(func(h *Hub) {
		h.maxPayload = n
	})
}

type Hub struct {
	logger     *zap.SugaredLogger
	users      *user.Service
	social     *social.Service
	groups     *group.Registry
	history    *Repository
	clears     *ClearNegotiator
	blobs      blob.Store
	now        func() time.Time
	maxPayload int
	parsers    fastjson.ParserPool
	routes     map[string]route

	clients map[*Client]bool
	online  map[string]*Client
	rooms   map[string]map[*Client]bool
	dropped []*Client

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan inbound
	done       chan struct{}
}

func NewHub(logger *zap.SugaredLogger, users *user.Service, soc *social.Service, groups *group.Registry, history *Repository, opts ...Option) *Hub {
	h := &Hub{
		logger:     logger,
		users:      users,
		social:     soc,
		groups:     groups,
		history:    history,
		clears:     NewClearNegotiator(),
		now:        time.Now,
		maxPayload: MaxPayloadBytes,
		clients:    make(map[*Client]bool),
		online:     make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan inbound, sendBuffer),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o.apply(h)
	}

	h.routes = map[string]route{
		EventRegister:      {errEvent: EventRegisterError, fn: h.register},
		EventLogin:         {errEvent: EventLoginError, fn: h.login},
		EventAutoLogin:     {fn: h.autoLogin},
		EventLogout:        {auth: true, fn: h.logout},
		EventSearchUsers:   {auth: true, fn: h.searchUsers},
		EventUpdateProfile: {auth: true, errEvent: EventProfileError, fn: h.updateProfile},
		EventSaveFile:      {auth: true, errEvent: EventMessageError, fn: h.saveFile},

		EventFriendRequest: {auth: true, errEvent: EventFriendError, fn: h.sendFriendRequest},
		EventAcceptFriend:  {auth: true, errEvent: EventFriendError, fn: h.acceptFriendRequest},
		EventRejectFriend:  {auth: true, errEvent: EventFriendError, fn: h.rejectFriendRequest},
		EventBlockUser:     {auth: true, errEvent: EventFriendError, fn: h.blockUser},
		EventUnblockUser:   {auth: true, errEvent: EventFriendError, fn: h.unblockUser},
		EventBanUser:       {auth: true, errEvent: EventBanError, fn: h.banUser},
		EventUnbanUser:     {auth: true, errEvent: EventBanError, fn: h.unbanUser},
		EventSetAdmin:      {auth: true, errEvent: EventAdminError, fn: h.setAdmin},

		EventCreateGroup:   {auth: true, errEvent: EventGroupError, fn: h.createGroup},
		EventGetGroups:     {auth: true, fn: h.getGroups},
		EventAddToGroup:    {auth: true, errEvent: EventGroupError, fn: h.addToGroup},
		EventRemoveFromGrp: {auth: true, errEvent: EventGroupError, fn: h.removeFromGroup},
		EventUpdateGroup:   {auth: true, errEvent: EventGroupError, fn: h.updateGroup},
		EventDeleteGroup:   {auth: true, errEvent: EventGroupError, fn: h.deleteGroup},
		EventSetGroupAdmin: {auth: true, errEvent: EventGroupError, fn: h.setGroupAdmin},

		EventMessage:       {auth: true, errEvent: EventMessageError, fn: h.publish},
		EventEditMessage:   {auth: true, errEvent: EventMessageError, fn: h.editMessage},
		EventDeleteMessage: {auth: true, errEvent: EventMessageError, fn: h.deleteMessage},
		EventClearChat:     {auth: true, errEvent: EventClearChatError, fn: h.requestClearChat},
		EventJoinRoom:      {auth: true, fn: h.joinRoom},
		EventGetHistory:    {auth: true, fn: h.getHistory},
	}
	return h
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	// Writes started by an event finish even while shutting down.
	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.Send)
			}
			h.clients = make(map[*Client]bool)
			h.logger.Infow("hub stopped")
			return

		case c := <-h.Register:
			h.clients[c] = true

		case c := <-h.Unregister:
			h.disconnect(work, c)

		case in := <-h.Inbound:
			h.handle(work, in.client, in.raw, in.creds)
		}
		h.reap(work)
	}
}

func (h *Hub) attach(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) release(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(c *Client, raw []byte) bool {
	select {
	case h.Inbound <- inbound{client: c, raw: raw, creds: h.precompute(raw)}:
		return true
	case <-h.done:
		return false
	}
}

// precompute runs the password hashing or comparison a login or register
// frame needs. It is called outside the hub loop; the handlers fall back to
// doing the work themselves when the result is missing or stale.
func (h *Hub) precompute(raw []byte) *credentials {
	p := h.parsers.Get()
	defer h.parsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil
	}
	d := v.Get("data")
	if d == nil {
		return nil
	}
	password := string(d.GetStringBytes("password"))
	if password == "" {
		return nil
	}

	switch event := string(v.GetStringBytes("event")); event {
	case EventLogin:
		u, ok := h.users.Get(str(d, "username"))
		if !ok {
			return nil
		}
		return &credentials{event: event, hash: u.PasswordHash, match: h.users.PasswordMatches(u.PasswordHash, password)}
	case EventRegister:
		hash, err := h.users.HashPassword(password)
		if err != nil {
			return nil
		}
		return &credentials{event: event, hash: hash}
	}
	return nil
}

func (h *Hub) handle(ctx context.Context, c *Client, raw []byte, creds *credentials) {
	if !h.clients[c] {
		return
	}

	p := h.parsers.Get()
	defer h.parsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		h.send(c, EventError, errorPayload{Msg: "malformed frame"})
		return
	}
	event := string(v.GetStringBytes("event"))
	r, ok := h.routes[event]
	if !ok {
		h.send(c, EventError, errorPayload{Msg: "unknown event"})
		return
	}
	if r.auth && c.username == "" {
		return
	}

	data := v.Get("data")
	if data == nil || data.Type() != fastjson.TypeObject {
		data = emptyObject
	}
	if creds != nil {
		ctx = context.WithValue(ctx, credentialsKey{}, creds)
	}
	if err := r.fn(ctx, c, data); err != nil {
		h.fail(c, event, r.errEvent, err)
	}
}

func (h *Hub) fail(c *Client, event, errEvent string, err error) {
	switch {
	case apperr.IsSilent(err):
		h.logger.Debugw("event ignored", "event", event, "client", c.ID, "reason", err)
		return
	case apperr.KindOf(err) == 0:
		h.logger.Errorw("event failed", "event", event, "client", c.ID, "error", err)
	}
	if errEvent != "" {
		h.send(c, errEvent, errorPayload{Msg: apperr.Reason(err)})
	}
}

func (h *Hub) encode(event string, data interface{}) []byte {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Errorw("encode frame", "event", event, "error", err)
		return nil
	}
	return frame
}

// deliver queues frame for c. A client whose buffer is full is dropped once
// the current event is done.
func (h *Hub) deliver(c *Client, frame []byte) {
	if frame == nil || !h.clients[c] {
		return
	}
	select {
	case c.Send <- frame:
	default:
		h.dropped = append(h.dropped, c)
	}
}

func (h *Hub) reap(ctx context.Context) {
	for len(h.dropped) > 0 {
		c := h.dropped[0]
		h.dropped = h.dropped[1:]
		if h.clients[c] {
			h.logger.Warnw("dropping slow client", "client", c.ID, "username", c.username)
			h.disconnect(ctx, c)
		}
	}
}

func (h *Hub) send(c *Client, event string, data interface{}) {
	h.deliver(c, h.encode(event, data))
}

func (h *Hub) toUser(username, event string, data interface{}) {
	if c, ok := h.online[username]; ok {
		h.send(c, event, data)
	}
}

func (h *Hub) toRoom(room, event string, data interface{}) {
	frame := h.encode(event, data)
	for c := range h.rooms[room] {
		h.deliver(c, frame)
	}
}

func (h *Hub) toAll(event string, data interface{}) {
	frame := h.encode(event, data)
	for c := range h.clients {
		h.deliver(c, frame)
	}
}

func (h *Hub) toMembers(g group.Group, event string, data interface{}) {
	frame := h.encode(event, data)
	for _, m := range g.Members {
		if c, ok := h.online[m]; ok {
			h.deliver(c, frame)
		}
	}
}

func (h *Hub) join(c *Client, room string) {
	h.leave(c)
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*Client]bool)
		h.rooms[room] = subs
	}
	subs[c] = true
	c.room = room
}

func (h *Hub) leave(c *Client) {
	if subs, ok := h.rooms[c.room]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

func (h *Hub) sendHistory(c *Client, room string) {
	h.send(c, EventHistory, historyPayload{Room: room, Messages: h.history.Recent(room, HistoryLimit)})
}

// moveToGeneral puts c back into the general room.
func (h *Hub) moveToGeneral(c *Client) {
	h.join(c, GeneralRoom)
	h.sendHistory(c, GeneralRoom)
}

func (h *Hub) broadcastRoster() {
	names := make([]string, 0, len(h.online))
	for name := range h.online {
		names = append(names, name)
	}
	sort.Strings(names)

	roster := make([]rosterEntry, 0, len(names))
	for _, name := range names {
		if h.social.IsBanned(name) {
			continue
		}
		u, ok := h.users.Get(name)
		if !ok {
			continue
		}
		roster = append(roster, rosterEntry{
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Avatar:      u.Avatar,
			IsAdmin:     u.IsAdmin,
			LastSeen:    u.LastSeen,
		})
	}
	h.toAll(EventUserList, roster)
}

// disconnect forgets a connection entirely.
func (h *Hub) disconnect(ctx context.Context, c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.Send)
	h.detach(ctx, c)
	h.logger.Debugw("client disconnected", "client", c.ID)
}
