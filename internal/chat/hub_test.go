package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"senat/internal/group"
	"senat/internal/social"
	"senat/internal/store"
	"senat/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type fixture struct {
	t   *testing.T
	hub *Hub
	now time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func bootstrap(t *testing.T) *fixture {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	st := store.New(logger, store.NewMemory())
	f := &fixture{t: t, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	users := user.NewService(ctx, logger, st, "secret",
		user.BcryptCost(bcrypt.MinCost), user.Admins("root"), user.Clock(f.clock))
	for _, name := range []string{"alice", "bob", "carol", "root"} {
		_, err := users.Register(ctx, &user.RegisterRequest{Username: name, Password: "pw-" + name})
		require.NoError(t, err)
	}
	soc := social.NewService(ctx, logger, st, users)
	groups := group.NewRegistry(ctx, logger, st, users)
	history := NewRepository(ctx, logger, st)

	f.hub = NewHub(logger, users, soc, groups, history, Clock(f.clock))
	return f
}

func (f *fixture) connect() *Client {
	c := &Client{ID: uuid.NewString(), Hub: f.hub, Send: make(chan []byte, 4096)}
	f.hub.clients[c] = true
	return c
}

func (f *fixture) frame(event string, data interface{}) []byte {
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	require.NoError(f.t, err)
	return raw
}

func (f *fixture) emit(c *Client, event string, data interface{}) {
	raw := f.frame(event, data)
	ctx := context.Background()
	f.hub.handle(ctx, c, raw, f.hub.precompute(raw))
	f.hub.reap(ctx)
}

func (f *fixture) login(name string) *Client {
	c := f.connect()
	f.emit(c, EventLogin, map[string]interface{}{"username": name, "password": "pw-" + name})
	require.Equal(f.t, name, c.username)
	drain(c)
	return c
}

func (f *fixture) say(c *Client, room, text string) {
	f.emit(c, EventMessage, map[string]string{"room": room, "msg": text})
}

// drainAll returns the frames queued for c and whether its channel was closed.
func drainAll(c *Client) ([]frame, bool) {
	var frames []frame
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return frames, true
			}
			var fr frame
			if err := json.Unmarshal(raw, &fr); err != nil {
				panic(err)
			}
			frames = append(frames, fr)
		default:
			return frames, false
		}
	}
}

func drain(c *Client) []frame {
	frames, _ := drainAll(c)
	return frames
}

func events(frames []frame) []string {
	names := make([]string, 0, len(frames))
	for _, fr := range frames {
		names = append(names, fr.Event)
	}
	return names
}

func find(t *testing.T, frames []frame, event string, v interface{}) {
	for _, fr := range frames {
		if fr.Event == event {
			if v != nil {
				require.NoError(t, json.Unmarshal(fr.Data, v))
			}
			return
		}
	}
	t.Fatalf("no %s frame in %v", event, events(frames))
}

func errorMsg(t *testing.T, frames []frame, event string) string {
	var p errorPayload
	find(t, frames, event, &p)
	return p.Msg
}

func TestLoginSequence(t *testing.T) {
	f := bootstrap(t)
	bob := f.login("bob")

	alice := f.connect()
	f.emit(alice, EventLogin, map[string]interface{}{"username": "alice", "password": "pw-alice"})

	frames := drain(alice)
	require.Equal(t, []string{EventHistory, EventLoginSuccess, EventMessage, EventUserList, EventAllUsers}, events(frames))

	var ok loginPayload
	find(t, frames, EventLoginSuccess, &ok)
	require.Equal(t, "alice", ok.Username)
	require.Empty(t, ok.Token)

	var roster []rosterEntry
	find(t, frames, EventUserList, &roster)
	require.Len(t, roster, 2)
	require.Equal(t, "alice", roster[0].Username)

	var all []directoryEntry
	find(t, frames, EventAllUsers, &all)
	require.Len(t, all, 3)

	// bob sits in general and sees the announcement and roster
	require.Equal(t, []string{EventMessage, EventUserList}, events(drain(bob)))
}

func TestLoginErrors(t *testing.T) {
	f := bootstrap(t)
	f.login("alice")

	cases := []struct {
		username, password string
		want               string
	}{
		{"", "x", user.ErrMissingFields.Msg},
		{"ghost", "x", user.ErrUserNotFound.Msg},
		{"bob", "wrong", user.ErrInvalidCredential.Msg},
		{"alice", "pw-alice", user.ErrAlreadyOnline.Msg},
	}
	for _, tc := range cases {
		c := f.connect()
		f.emit(c, EventLogin, map[string]string{"username": tc.username, "password": tc.password})
		require.Equal(t, tc.want, errorMsg(t, drain(c), EventLoginError), tc.username)
		require.Empty(t, c.username)
	}
}

func TestPrecomputedCredentials(t *testing.T) {
	f := bootstrap(t)
	ctx := context.Background()

	// the login frame is read before the register frame ahead of it is handled
	reg := f.frame(EventRegister, map[string]string{"username": "dave", "password": "pw-dave"})
	login := f.frame(EventLogin, map[string]string{"username": "dave", "password": "pw-dave"})
	loginCreds := f.hub.precompute(login)
	require.Nil(t, loginCreds)
	regCreds := f.hub.precompute(reg)
	require.NotNil(t, regCreds)

	c := f.connect()
	f.hub.handle(ctx, c, reg, regCreds)
	find(t, drain(c), EventRegisterSuccess, nil)
	u, ok := f.hub.users.Get("dave")
	require.True(t, ok)
	require.Equal(t, regCreds.hash, u.PasswordHash)

	f.hub.handle(ctx, c, login, loginCreds)
	require.Equal(t, "dave", c.username)

	// a comparison against a hash that is no longer stored is redone
	stale := &credentials{event: EventLogin, hash: "replaced", match: true}
	other := f.connect()
	f.hub.handle(ctx, other, f.frame(EventLogin, map[string]string{"username": "bob", "password": "wrong"}), stale)
	require.Equal(t, user.ErrInvalidCredential.Msg, errorMsg(t, drain(other), EventLoginError))
	require.Empty(t, other.username)
}

func TestAutoLogin(t *testing.T) {
	f := bootstrap(t)

	c := f.connect()
	f.emit(c, EventLogin, map[string]interface{}{"username": "alice", "password": "pw-alice", "remember": true})
	var ok loginPayload
	find(t, drain(c), EventLoginSuccess, &ok)
	require.NotEmpty(t, ok.Token)

	// the first session is still live
	second := f.connect()
	f.emit(second, EventAutoLogin, map[string]string{"token": ok.Token})
	require.Empty(t, drain(second))
	require.Empty(t, second.username)

	f.hub.disconnect(context.Background(), c)

	f.emit(second, EventAutoLogin, map[string]string{"token": ok.Token})
	find(t, drain(second), EventLoginSuccess, nil)
	require.Equal(t, "alice", second.username)

	// logout revokes the token
	f.emit(second, EventLogout, nil)
	find(t, drain(second), EventLoggedOut, nil)
	require.Empty(t, second.username)

	f.emit(second, EventAutoLogin, map[string]string{"token": ok.Token})
	require.Empty(t, drain(second))
	require.Empty(t, second.username)
}

func TestUnauthenticatedEventsAreDropped(t *testing.T) {
	f := bootstrap(t)
	c := f.connect()

	f.say(c, GeneralRoom, "hello")
	require.Empty(t, drain(c))
	require.Empty(t, f.hub.history.Recent(GeneralRoom, 0))

	f.hub.handle(context.Background(), c, []byte("{not json"), nil)
	require.Equal(t, "malformed frame", errorMsg(t, drain(c), EventError))

	f.emit(c, "teleport", nil)
	require.Equal(t, "unknown event", errorMsg(t, drain(c), EventError))
}

func TestFriendFlow(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	drain(alice)

	f.emit(alice, EventFriendRequest, map[string]string{"to": "bob"})
	find(t, drain(alice), EventFriendRequestSent, nil)

	var req friendRequestPayload
	find(t, drain(bob), EventFriendRequestReceived, &req)
	require.Equal(t, "alice", req.From)

	f.emit(bob, EventAcceptFriend, map[string]string{"from": "alice"})
	var accepted usernamePayload
	find(t, drain(alice), EventFriendRequestAccepted, &accepted)
	require.Equal(t, "bob", accepted.Username)

	var updated friendsPayload
	find(t, drain(bob), EventFriendsUpdated, &updated)
	require.Equal(t, []string{"alice"}, updated.Friends)
	require.Empty(t, updated.PendingIn)

	require.True(t, f.hub.social.AreFriends("alice", "bob"))
	require.True(t, f.hub.social.AreFriends("bob", "alice"))

	f.emit(alice, EventFriendRequest, map[string]string{"to": "bob"})
	require.Equal(t, social.ErrAlreadyFriends.Msg, errorMsg(t, drain(alice), EventFriendError))
}

func TestHistoryIsBounded(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")

	for i := 0; i < HistoryLimit+1; i++ {
		f.say(alice, GeneralRoom, fmt.Sprintf("msg %d", i))
	}

	history := f.hub.history.Recent(GeneralRoom, 0)
	require.Len(t, history, HistoryLimit)
	require.Equal(t, "msg 1", history[0].Text)
	require.Equal(t, "msg 100", history[len(history)-1].Text)
	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i].ID, history[i-1].ID)
	}
}

func TestPublishRules(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")

	f.say(alice, GeneralRoom, "   ")
	require.Equal(t, ErrEmptyMessage.Msg, errorMsg(t, drain(alice), EventMessageError))

	f.say(alice, PrivateRoom("bob", "carol"), "hi")
	require.Equal(t, ErrNoAccess.Msg, errorMsg(t, drain(alice), EventMessageError))

	f.hub.maxPayload = 16
	f.say(alice, GeneralRoom, "data:image/png;base64,AAAAAAAAAAAAAAAA")
	require.Equal(t, ErrPayloadTooLarge.Msg, errorMsg(t, drain(alice), EventMessageError))

	f.emit(alice, EventMessage, map[string]interface{}{"room": GeneralRoom, "msg": "reply", "reply_to": 42})
	var m Message
	find(t, drain(alice), EventMessage, &m)
	require.NotNil(t, m.ReplyTo)
	require.EqualValues(t, 42, *m.ReplyTo)
	require.Equal(t, "alice", m.Username)
}

func TestBlockedPrivatePublish(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	room := PrivateRoom("alice", "bob")
	require.Equal(t, "private_alice_bob", room)

	f.emit(alice, EventJoinRoom, map[string]string{"room": room})
	f.emit(bob, EventJoinRoom, map[string]string{"room": room})
	f.say(alice, room, "hi bob")
	f.say(bob, room, "hi alice")
	drain(alice)
	require.Len(t, f.hub.history.Recent(room, 0), 2)

	f.emit(alice, EventBlockUser, map[string]string{"username": "bob"})
	find(t, drain(alice), EventUserBlocked, nil)

	drain(bob)
	f.say(bob, room, "still there?")
	require.Equal(t, social.ErrBlocked.Msg, errorMsg(t, drain(bob), EventMessageError))
	require.Len(t, f.hub.history.Recent(room, 0), 2)

	f.say(alice, room, "bye")
	require.Equal(t, social.ErrBlocked.Msg, errorMsg(t, drain(alice), EventMessageError))
}

func TestBanDisconnects(t *testing.T) {
	f := bootstrap(t)
	root := f.login("root")
	bob := f.login("bob")
	alice := f.login("alice")

	f.emit(alice, EventBanUser, map[string]string{"username": "bob"})
	require.Equal(t, social.ErrForbidden.Msg, errorMsg(t, drain(alice), EventBanError))

	f.emit(root, EventBanUser, map[string]string{"username": "root"})
	require.Equal(t, social.ErrAdminTarget.Msg, errorMsg(t, drain(root), EventBanError))

	f.emit(root, EventBanUser, map[string]string{"username": "bob", "reason": "spam"})

	frames, closed := drainAll(bob)
	require.True(t, closed)
	var banned bannedPayload
	find(t, frames, EventBanned, &banned)
	require.Equal(t, "spam", banned.Reason)
	require.NotContains(t, f.hub.online, "bob")
	require.NotContains(t, f.hub.clients, bob)

	var notice userBannedPayload
	find(t, drain(alice), EventUserBanned, &notice)
	require.Equal(t, "bob", notice.Username)

	again := f.connect()
	f.emit(again, EventLogin, map[string]string{"username": "bob", "password": "pw-bob"})
	require.Equal(t, social.ErrBanned.Msg, errorMsg(t, drain(again), EventLoginError))

	f.emit(root, EventUnbanUser, map[string]string{"username": "bob"})
	f.emit(again, EventLogin, map[string]string{"username": "bob", "password": "pw-bob"})
	find(t, drain(again), EventLoginSuccess, nil)
}

func TestSetAdmin(t *testing.T) {
	f := bootstrap(t)
	root := f.login("root")
	alice := f.login("alice")

	f.emit(alice, EventSetAdmin, map[string]interface{}{"username": "alice", "is_admin": true})
	require.Equal(t, social.ErrForbidden.Msg, errorMsg(t, drain(alice), EventAdminError))

	f.emit(root, EventSetAdmin, map[string]interface{}{"username": "root", "is_admin": false})
	require.Equal(t, ErrSelfDemote.Msg, errorMsg(t, drain(root), EventAdminError))

	f.emit(root, EventSetAdmin, map[string]interface{}{"username": "alice", "is_admin": true})
	var p adminPayload
	find(t, drain(alice), EventAdminUpdated, &p)
	require.True(t, p.IsAdmin)
	require.True(t, f.hub.users.IsAdmin("alice"))
}

func TestClearChat(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	room := PrivateRoom("alice", "bob")
	f.say(alice, room, "one")
	f.say(bob, room, "two")

	f.emit(alice, EventClearChat, map[string]string{"with_user": "bob"})
	var proposal clearRequestPayload
	find(t, drain(bob), EventClearChatRequested, &proposal)
	require.Equal(t, "alice", proposal.From)
	require.Equal(t, room, proposal.Chat)

	// asking twice is not consent
	f.emit(alice, EventClearChat, map[string]string{"with_user": "bob"})
	require.Len(t, f.hub.history.Recent(room, 0), 2)
	drain(alice)
	drain(bob)

	f.emit(bob, EventClearChat, map[string]string{"with_user": "alice"})
	require.Empty(t, f.hub.history.Recent(room, 0))

	var cleared chatClearedPayload
	find(t, drain(alice), EventChatCleared, &cleared)
	require.Equal(t, room, cleared.Chat)
	find(t, drain(bob), EventChatCleared, nil)

	f.emit(bob, EventClearChat, map[string]string{"with_user": "bob"})
	require.Equal(t, ErrClearSelf.Msg, errorMsg(t, drain(bob), EventClearChatError))
}

func TestEditWindow(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	f.say(alice, GeneralRoom, "first draft")
	id := f.hub.history.Recent(GeneralRoom, 0)[0].ID
	drain(alice)
	drain(bob)

	f.emit(bob, EventEditMessage, map[string]interface{}{"id": id, "room": GeneralRoom, "new_text": "hijacked"})
	require.Empty(t, drain(bob))

	f.now = f.now.Add(4 * time.Minute)
	f.emit(alice, EventEditMessage, map[string]interface{}{"id": id, "room": GeneralRoom, "new_text": "second draft"})
	var edited messageEditedPayload
	find(t, drain(bob), EventMessageEdited, &edited)
	require.Equal(t, "second draft", edited.NewText)
	drain(alice)

	f.now = f.now.Add(2 * time.Minute)
	f.emit(alice, EventEditMessage, map[string]interface{}{"id": id, "room": GeneralRoom, "new_text": "too late"})
	require.Empty(t, drain(alice))

	m := f.hub.history.Recent(GeneralRoom, 0)[0]
	require.Equal(t, "second draft", m.Text)
	require.True(t, m.Edited)
}

func TestDeletePermissions(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	root := f.login("root")
	f.say(alice, GeneralRoom, "one")
	f.say(alice, GeneralRoom, "two")
	history := f.hub.history.Recent(GeneralRoom, 0)
	drain(alice)
	drain(bob)

	f.emit(bob, EventDeleteMessage, map[string]interface{}{"id": history[0].ID, "room": GeneralRoom})
	require.Empty(t, drain(bob))
	require.Len(t, f.hub.history.Recent(GeneralRoom, 0), 2)

	f.emit(alice, EventDeleteMessage, map[string]interface{}{"id": history[0].ID, "room": GeneralRoom})
	var deleted messageDeletedPayload
	find(t, drain(bob), EventMessageDeleted, &deleted)
	require.Equal(t, history[0].ID, deleted.ID)

	f.emit(root, EventDeleteMessage, map[string]interface{}{"id": history[1].ID, "room": GeneralRoom})
	require.Empty(t, f.hub.history.Recent(GeneralRoom, 0))
}

func TestGroupLifecycle(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	carol := f.login("carol")

	f.emit(alice, EventCreateGroup, map[string]string{"name": "team"})
	var g group.Group
	find(t, drain(alice), EventGroupCreated, &g)
	require.Equal(t, "team", g.Name)

	f.emit(bob, EventAddToGroup, map[string]string{"group_id": g.ID, "username": "carol"})
	require.Equal(t, group.ErrForbidden.Msg, errorMsg(t, drain(bob), EventGroupError))

	f.emit(alice, EventAddToGroup, map[string]string{"group_id": g.ID, "username": "bob"})
	var added groupMemberPayload
	find(t, drain(bob), EventGroupMemberAdded, &added)
	require.Equal(t, "bob", added.Username)

	f.emit(bob, EventJoinRoom, map[string]string{"room": g.ID})
	find(t, drain(bob), EventHistory, nil)
	f.say(bob, g.ID, "hello team")
	find(t, drain(bob), EventMessage, nil)

	f.say(carol, g.ID, "let me in")
	require.Equal(t, ErrNoAccess.Msg, errorMsg(t, drain(carol), EventMessageError))
	f.emit(carol, EventJoinRoom, map[string]string{"room": g.ID})
	require.Empty(t, drain(carol))
	require.Equal(t, GeneralRoom, carol.room)

	f.emit(bob, EventDeleteGroup, map[string]string{"group_id": g.ID})
	require.Equal(t, group.ErrNotCreator.Msg, errorMsg(t, drain(bob), EventGroupError))

	f.emit(alice, EventDeleteGroup, map[string]string{"group_id": g.ID})
	frames := drain(bob)
	find(t, frames, EventGroupDeleted, nil)
	require.Equal(t, GeneralRoom, bob.room)
	require.Empty(t, f.hub.history.Recent(g.ID, 0))
	drain(alice)

	// unknown group ids are ignored
	f.emit(alice, EventDeleteGroup, map[string]string{"group_id": g.ID})
	require.Empty(t, drain(alice))
}

type blobRecorder struct {
	puts []string
}

func (b *blobRecorder) Put(_ context.Context, _ []byte, contentType string) (string, error) {
	b.puts = append(b.puts, contentType)
	return fmt.Sprintf("/blobs/%d", len(b.puts)), nil
}

// groupWith has alice create a group and add each of members.
func (f *fixture) groupWith(alice *Client, members ...*Client) group.Group {
	f.emit(alice, EventCreateGroup, map[string]string{"name": "team"})
	var g group.Group
	find(f.t, drain(alice), EventGroupCreated, &g)
	for _, m := range members {
		f.emit(alice, EventAddToGroup, map[string]string{"group_id": g.ID, "username": m.username})
		drain(m)
	}
	drain(alice)
	return g
}

func TestRemoveFromGroup(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	carol := f.login("carol")
	g := f.groupWith(alice, bob, carol)

	f.emit(bob, EventJoinRoom, map[string]string{"room": g.ID})
	drain(bob)
	require.Contains(t, f.hub.rooms[g.ID], bob)

	f.emit(carol, EventRemoveFromGrp, map[string]string{"group_id": g.ID, "username": "bob"})
	require.Equal(t, group.ErrForbidden.Msg, errorMsg(t, drain(carol), EventGroupError))

	f.emit(alice, EventRemoveFromGrp, map[string]string{"group_id": g.ID, "username": "alice"})
	require.Equal(t, group.ErrRemoveCreator.Msg, errorMsg(t, drain(alice), EventGroupError))

	f.emit(alice, EventRemoveFromGrp, map[string]string{"group_id": g.ID, "username": "bob"})

	var removed groupMemberPayload
	find(t, drain(carol), EventGroupMemberRemoved, &removed)
	require.Equal(t, "bob", removed.Username)
	require.NotContains(t, removed.Group.Members, "bob")

	frames := drain(bob)
	require.Equal(t, []string{EventGroupMemberRemoved, EventHistory}, events(frames))
	var h historyPayload
	find(t, frames, EventHistory, &h)
	require.Equal(t, GeneralRoom, h.Room)
	require.Equal(t, GeneralRoom, bob.room)
	require.NotContains(t, f.hub.rooms[g.ID], bob)

	f.emit(bob, EventGetHistory, map[string]string{"room": g.ID})
	require.Empty(t, drain(bob))

	f.emit(alice, EventRemoveFromGrp, map[string]string{"group_id": g.ID, "username": "bob"})
	require.Equal(t, group.ErrNotMember.Msg, errorMsg(t, drain(alice), EventGroupError))
}

func TestUpdateGroup(t *testing.T) {
	f := bootstrap(t)
	blobs := &blobRecorder{}
	f.hub.blobs = blobs
	alice := f.login("alice")
	bob := f.login("bob")
	carol := f.login("carol")
	g := f.groupWith(alice, bob)
	drain(carol)

	avatar := "data:image/png;base64,aGVsbG8="
	f.emit(bob, EventUpdateGroup, map[string]string{"group_id": g.ID, "name": "mine", "avatar": avatar})
	require.Equal(t, group.ErrForbidden.Msg, errorMsg(t, drain(bob), EventGroupError))
	require.Empty(t, blobs.puts)

	f.emit(alice, EventUpdateGroup, map[string]string{"group_id": g.ID, "avatar": avatar})
	require.Equal(t, []string{"image/png"}, blobs.puts)
	for _, c := range []*Client{alice, bob} {
		var upd groupUpdatedPayload
		find(t, drain(c), EventGroupUpdated, &upd)
		require.Equal(t, "team", upd.Name)
		require.Equal(t, "/blobs/1", upd.Avatar)
	}
	require.Empty(t, drain(carol))

	// a name-only update keeps the stored avatar
	f.emit(alice, EventUpdateGroup, map[string]string{"group_id": g.ID, "name": "crew"})
	var upd groupUpdatedPayload
	find(t, drain(bob), EventGroupUpdated, &upd)
	require.Equal(t, "crew", upd.Name)
	require.Equal(t, "/blobs/1", upd.Avatar)
	drain(alice)

	got, ok := f.hub.groups.Get(g.ID)
	require.True(t, ok)
	require.Equal(t, "crew", got.Name)
	require.Equal(t, "/blobs/1", got.Avatar)
}

func TestSwitchRoom(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")

	f.emit(alice, EventJoinRoom, map[string]string{"room": GeneralRoom})
	require.Empty(t, drain(alice))

	f.emit(alice, EventJoinRoom, map[string]string{"room": PrivateRoom("bob", "carol")})
	require.Empty(t, drain(alice))
	require.Equal(t, GeneralRoom, alice.room)

	room := PrivateRoom("bob", "alice")
	f.emit(alice, EventJoinRoom, map[string]string{"room": room})
	var h historyPayload
	find(t, drain(alice), EventHistory, &h)
	require.Equal(t, room, h.Room)
	require.Equal(t, room, alice.room)
	require.NotContains(t, f.hub.rooms[GeneralRoom], alice)
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	f := bootstrap(t)
	alice := f.login("alice")
	bob := f.login("bob")
	drain(alice)

	f.hub.disconnect(context.Background(), bob)

	frames := drain(alice)
	var sys SystemMessage
	find(t, frames, EventMessage, &sys)
	require.Equal(t, "system", sys.Type)
	var roster []rosterEntry
	find(t, frames, EventUserList, &roster)
	require.Len(t, roster, 1)
	require.NotContains(t, f.hub.online, "bob")
}

func TestSlowClientIsDropped(t *testing.T) {
	f := bootstrap(t)
	stuck := &Client{ID: "stuck", Hub: f.hub, Send: make(chan []byte)}
	f.hub.clients[stuck] = true

	f.login("alice")

	require.NotContains(t, f.hub.clients, stuck)
	_, open := <-stuck.Send
	require.False(t, open)
}
