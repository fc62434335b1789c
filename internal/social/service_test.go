package social

import (
	"context"
	"testing"

	"senat/internal/apperr"
	"senat/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type directory map[string]bool // username -> admin

func (d directory) Exists(username string) bool {
	_, ok := d[username]
	return ok
}

func (d directory) IsAdmin(username string) bool { return d[username] }

func bootstrap(t *testing.T) (*Service, store.Store) {
	logger := zaptest.NewLogger(t).Sugar()
	st := store.New(logger, store.NewMemory())
	users := directory{"alice": false, "bob": false, "carol": false, "root": true}
	return NewService(context.Background(), logger, st, users), st
}

func requireSymmetric(t *testing.T, s *Service) {
	for name, f := range s.friends {
		for _, other := range f.Friends {
			require.True(t, s.AreFriends(other, name), "%s -> %s is one-sided", name, other)
		}
		for _, other := range f.PendingOut {
			require.Contains(t, s.Friends(other).PendingIn, name)
		}
		for _, other := range f.PendingIn {
			require.Contains(t, s.Friends(other).PendingOut, name)
		}
	}
}

func TestFriendRequestAccept(t *testing.T) {
	ctx := context.Background()
	s, _ := bootstrap(t)

	require.NoError(t, s.SendRequest(ctx, "alice", "bob"))
	require.Equal(t, []string{"bob"}, s.Friends("alice").PendingOut)
	require.Equal(t, []string{"alice"}, s.Friends("bob").PendingIn)
	requireSymmetric(t, s)

	require.NoError(t, s.Accept(ctx, "bob", "alice"))
	requireSymmetric(t, s)

	alice, bob := s.Friends("alice"), s.Friends("bob")
	require.Equal(t, []string{"bob"}, alice.Friends)
	require.Equal(t, []string{"alice"}, bob.Friends)
	require.Empty(t, alice.PendingOut)
	require.Empty(t, alice.PendingIn)
	require.Empty(t, bob.PendingOut)
	require.Empty(t, bob.PendingIn)
}

func TestFriendRequestRules(t *testing.T) {
	ctx := context.Background()
	s, _ := bootstrap(t)

	require.ErrorIs(t, s.SendRequest(ctx, "alice", "ghost"), ErrUnknownUser)
	require.ErrorIs(t, s.SendRequest(ctx, "alice", "alice"), ErrSelf)

	require.NoError(t, s.SendRequest(ctx, "alice", "bob"))
	require.ErrorIs(t, s.SendRequest(ctx, "alice", "bob"), ErrAlreadyPending)
	require.ErrorIs(t, s.SendRequest(ctx, "bob", "alice"), ErrCrossedRequest)

	require.NoError(t, s.Accept(ctx, "bob", "alice"))
	require.ErrorIs(t, s.SendRequest(ctx, "bob", "alice"), ErrAlreadyFriends)

	require.NoError(t, s.Block(ctx, "carol", "alice"))
	require.ErrorIs(t, s.SendRequest(ctx, "alice", "carol"), ErrBlocked)
	require.ErrorIs(t, s.SendRequest(ctx, "carol", "alice"), ErrBlocked)
}

func TestAcceptWithoutRequestIsIgnored(t *testing.T) {
	s, _ := bootstrap(t)

	err := s.Accept(context.Background(), "bob", "alice")
	require.ErrorIs(t, err, ErrNoRequest)
	require.True(t, apperr.IsSilent(err))
	require.Empty(t, s.Friends("bob").Friends)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	s, _ := bootstrap(t)

	require.NoError(t, s.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, s.Reject(ctx, "bob", "alice"))
	require.Empty(t, s.Friends("alice").PendingOut)
	require.Empty(t, s.Friends("bob").PendingIn)
	require.False(t, s.AreFriends("alice", "bob"))
	requireSymmetric(t, s)
}

func TestBlockRemovesFriendship(t *testing.T) {
	ctx := context.Background()
	s, _ := bootstrap(t)

	require.NoError(t, s.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, s.Accept(ctx, "bob", "alice"))
	require.NoError(t, s.SendRequest(ctx, "carol", "alice"))

	require.NoError(t, s.Block(ctx, "alice", "bob"))
	require.NoError(t, s.Block(ctx, "alice", "bob"))
	require.NoError(t, s.Block(ctx, "alice", "carol"))

	require.False(t, s.AreFriends("alice", "bob"))
	require.False(t, s.AreFriends("bob", "alice"))
	require.Empty(t, s.Friends("alice").PendingIn)
	require.Empty(t, s.Friends("carol").PendingOut)
	require.Equal(t, []string{"bob", "carol"}, s.Blocked("alice"))
	require.True(t, s.EitherBlocks("bob", "alice"))
	requireSymmetric(t, s)

	require.NoError(t, s.Unblock(ctx, "alice", "bob"))
	require.False(t, s.Blocks("alice", "bob"))
	require.False(t, s.AreFriends("alice", "bob"))
}

func TestBan(t *testing.T) {
	ctx := context.Background()
	s, _ := bootstrap(t)

	_, err := s.Ban(ctx, "alice", "bob", "spam")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = s.Ban(ctx, "root", "root", "")
	require.ErrorIs(t, err, ErrAdminTarget)

	_, err = s.Ban(ctx, "root", "ghost", "")
	require.ErrorIs(t, err, ErrUnknownUser)

	b, err := s.Ban(ctx, "root", "bob", "  ")
	require.NoError(t, err)
	require.Equal(t, DefaultBanReason, b.Reason)
	require.Equal(t, "root", b.BannedBy)
	require.True(t, s.IsBanned("bob"))

	require.ErrorIs(t, s.Unban(ctx, "alice", "bob"), ErrForbidden)
	require.NoError(t, s.Unban(ctx, "root", "bob"))
	require.False(t, s.IsBanned("bob"))
	require.ErrorIs(t, s.Unban(ctx, "root", "bob"), ErrNotBanned)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	s, st := bootstrap(t)

	require.NoError(t, s.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, s.Accept(ctx, "bob", "alice"))
	require.NoError(t, s.SendRequest(ctx, "carol", "alice"))
	require.NoError(t, s.Block(ctx, "bob", "carol"))
	_, err := s.Ban(ctx, "root", "carol", "flood")
	require.NoError(t, err)

	reloaded := NewService(ctx, zaptest.NewLogger(t).Sugar(), st, directory{})
	require.True(t, reloaded.AreFriends("alice", "bob"))
	require.Equal(t, []string{"carol"}, reloaded.Friends("alice").PendingIn)
	require.True(t, reloaded.Blocks("bob", "carol"))

	b, ok := reloaded.BanOf("carol")
	require.True(t, ok)
	require.Equal(t, "flood", b.Reason)
}
