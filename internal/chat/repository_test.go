package chat

import (
	"context"
	"testing"
	"time"

	"senat/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		room     string
		kind     RoomKind
		resolved string
	}{
		{"", PublicRoom, GeneralRoom},
		{"general", PublicRoom, GeneralRoom},
		{"random", PublicRoom, "random"},
		{"private_alice_bob", PrivateRoomKind, "private_alice_bob"},
		{"group_c9q1_alice", GroupRoom, "group_c9q1_alice"},
	}
	for _, c := range cases {
		kind, room := Resolve(c.room)
		require.Equal(t, c.kind, kind, c.room)
		require.Equal(t, c.resolved, room, c.room)
	}
}

func TestParticipants(t *testing.T) {
	a, b, ok := Participants(PrivateRoom("zed", "amy"))
	require.True(t, ok)
	require.Equal(t, "amy", a)
	require.Equal(t, "zed", b)

	for _, room := range []string{"general", "private_", "private_bob_alice", "private_a_b_c", "private_alice"} {
		_, _, ok := Participants(room)
		require.False(t, ok, room)
	}
}

func TestRepositoryIDsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	r := NewRepository(ctx, logger, store.New(logger, store.NewMemory()))
	now := time.Now()

	first := &Message{Room: "general", Text: "a"}
	second := &Message{Room: "general", Text: "b"}
	r.Append(ctx, first, now)
	r.Append(ctx, second, now)
	require.Equal(t, now.UnixMilli(), first.ID)
	require.Equal(t, first.ID+1, second.ID)

	// a clock step backwards does not reuse ids
	third := &Message{Room: "general", Text: "c"}
	r.Append(ctx, third, now.Add(-time.Hour))
	require.Equal(t, second.ID+1, third.ID)
}

func TestRepositoryPersistsBuckets(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	st := store.New(logger, store.NewMemory())
	r := NewRepository(ctx, logger, st)
	now := time.Now()

	r.CreateGroup(ctx, "group_x_alice")
	r.Append(ctx, &Message{Room: "general", Username: "alice", Text: "pub"}, now)
	r.Append(ctx, &Message{Room: "private_alice_bob", Username: "alice", Text: "priv"}, now)
	r.Append(ctx, &Message{Room: "group_x_alice", Username: "alice", Text: "grp"}, now)

	reloaded := NewRepository(ctx, logger, st)
	require.Equal(t, "pub", reloaded.Recent("", 0)[0].Text)
	require.Equal(t, "priv", reloaded.Recent("private_alice_bob", 0)[0].Text)
	require.Equal(t, "grp", reloaded.Recent("group_x_alice", 0)[0].Text)

	next := &Message{Room: "general", Text: "after restart"}
	reloaded.Append(ctx, next, now)
	require.Greater(t, next.ID, reloaded.Recent("general", 0)[0].ID)

	reloaded.DropGroup(ctx, "group_x_alice")
	reloaded.Clear(ctx, "private_alice_bob")
	again := NewRepository(ctx, logger, st)
	require.Empty(t, again.Recent("group_x_alice", 0))
	require.Empty(t, again.Recent("private_alice_bob", 0))
	require.Len(t, again.Recent("general", 0), 2)
}

func TestRepositoryEditAndDelete(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	r := NewRepository(ctx, logger, store.New(logger, store.NewMemory()))
	now := time.Now()

	m := &Message{Room: "general", Username: "alice", Text: "hello"}
	r.Append(ctx, m, now)

	_, err := r.Edit(ctx, "general", m.ID+1, "alice", "x", now)
	require.ErrorIs(t, err, ErrMessageNotFound)

	long := make([]rune, 600)
	for i := range long {
		long[i] = 'я'
	}
	edited, err := r.Edit(ctx, "general", m.ID, "alice", string(long), now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 500, len([]rune(edited.Text)))

	_, err = r.Edit(ctx, "general", m.ID, "alice", "late", now.Add(EditWindow))
	require.ErrorIs(t, err, ErrEditExpired)

	_, err = r.Delete(ctx, "general", m.ID, "bob", false)
	require.ErrorIs(t, err, ErrNotAuthor)

	_, err = r.Delete(ctx, "general", m.ID, "bob", true)
	require.NoError(t, err)
	require.Empty(t, r.Recent("general", 0))
}

func TestClearNegotiator(t *testing.T) {
	n := NewClearNegotiator()

	require.False(t, n.Request("alice", "bob"))
	require.False(t, n.Request("alice", "bob"))
	requester, ok := n.Pending(PrivateRoom("bob", "alice"))
	require.True(t, ok)
	require.Equal(t, "alice", requester)

	require.True(t, n.Request("bob", "alice"))
	_, ok = n.Pending(PrivateRoom("alice", "bob"))
	require.False(t, ok)
}
