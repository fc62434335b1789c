// Package social manages the friend graph, per-user block lists and bans.
package social

import (
	"context"
	"sort"
	"strings"
	"time"

	"senat/internal/apperr"
	"senat/internal/store"

	"go.uber.org/zap"
)

var (
	ErrUnknownUser    = apperr.New(apperr.NotFound, "user not found")
	ErrSelf           = apperr.New(apperr.Validation, "you cannot do that to yourself")
	ErrBlocked        = apperr.New(apperr.Authorization, "you cannot interact with this user")
	ErrAlreadyFriends = apperr.New(apperr.StateConflict, "you are already friends")
	ErrAlreadyPending = apperr.New(apperr.StateConflict, "friend request already sent")
	ErrCrossedRequest = apperr.New(apperr.StateConflict, "this user already sent you a request")
	ErrNoRequest      = apperr.Ignored(apperr.NotFound, "no such friend request")
	ErrForbidden      = apperr.New(apperr.Authorization, "admin rights required")
	ErrAdminTarget    = apperr.New(apperr.Authorization, "an admin cannot be banned")
	ErrBanned         = apperr.New(apperr.Authorization, "you are banned")
	ErrNotBanned      = apperr.New(apperr.NotFound, "user is not banned")
)

// UserDirectory answers the questions the social graph needs about accounts.
type UserDirectory interface {
	Exists(username string) bool
	IsAdmin(username string) bool
}

// Service owns the friends, blocked and banned documents. It is not safe
// for concurrent use; the chat hub is its only caller.
type Service struct {
	logger  *zap.SugaredLogger
	store   store.Store
	users   UserDirectory
	now     func() time.Time
	friends graph
	blocked map[string][]string
	banned  map[string]Ban
}

func NewService(ctx context.Context, logger *zap.SugaredLogger, st store.Store, users UserDirectory) *Service {
	s := &Service{
		logger:  logger,
		store:   st,
		users:   users,
		now:     time.Now,
		friends: make(graph),
		blocked: make(map[string][]string),
		banned:  make(map[string]Ban),
	}
	store.LoadOrDefault(ctx, st, logger, store.Friends, &s.friends)
	store.LoadOrDefault(ctx, st, logger, store.Blocked, &s.blocked)
	store.LoadOrDefault(ctx, st, logger, store.Banned, &s.banned)
	if s.friends == nil {
		s.friends = make(graph)
	}
	if s.blocked == nil {
		s.blocked = make(map[string][]string)
	}
	if s.banned == nil {
		s.banned = make(map[string]Ban)
	}
	for _, f := range s.friends {
		sort.Strings(f.Friends)
		sort.Strings(f.PendingIn)
		sort.Strings(f.PendingOut)
	}
	for _, list := range s.blocked {
		sort.Strings(list)
	}
	return s
}

// Friends returns a copy of username's friends and pending requests.
func (s *Service) Friends(username string) Friends {
	return s.friends.view(username)
}

func (s *Service) AreFriends(a, b string) bool {
	return s.friends.areFriends(a, b)
}

// Blocked returns the users username has blocked.
func (s *Service) Blocked(username string) []string {
	return append([]string{}, s.blocked[username]...)
}

// Blocks reports whether a has blocked b.
func (s *Service) Blocks(a, b string) bool {
	return contains(s.blocked[a], b)
}

// EitherBlocks reports whether a block exists in either direction.
func (s *Service) EitherBlocks(a, b string) bool {
	return s.Blocks(a, b) || s.Blocks(b, a)
}

func (s *Service) IsBanned(username string) bool {
	_, ok := s.banned[username]
	return ok
}

func (s *Service) BanOf(username string) (Ban, bool) {
	b, ok := s.banned[username]
	return b, ok
}

// SendRequest records a pending friend request from one user to another.
func (s *Service) SendRequest(ctx context.Context, from, to string) error {
	to = strings.TrimSpace(to)
	switch {
	case to == "" || !s.users.Exists(to):
		return ErrUnknownUser
	case from == to:
		return ErrSelf
	case s.EitherBlocks(from, to):
		return ErrBlocked
	case s.friends.areFriends(from, to):
		return ErrAlreadyFriends
	case s.friends.pending(from, to):
		return ErrAlreadyPending
	case s.friends.pending(to, from):
		return ErrCrossedRequest
	}

	s.friends.request(from, to)
	s.saveFriends(ctx)
	return nil
}

// Accept turns the pending request from requester into a friendship.
func (s *Service) Accept(ctx context.Context, username, requester string) error {
	if !s.friends.pending(requester, username) {
		return ErrNoRequest
	}
	s.friends.dropRequest(requester, username)
	s.friends.link(requester, username)
	s.saveFriends(ctx)
	return nil
}

// Reject drops the pending request from requester.
func (s *Service) Reject(ctx context.Context, username, requester string) error {
	if !s.friends.pending(requester, username) {
		return ErrNoRequest
	}
	s.friends.dropRequest(requester, username)
	s.saveFriends(ctx)
	return nil
}

// Block adds target to username's block list, ending any friendship and
// pending requests between the two.
func (s *Service) Block(ctx context.Context, username, target string) error {
	if target == username {
		return ErrSelf
	}
	if !s.users.Exists(target) {
		return ErrUnknownUser
	}

	s.blocked[username] = insert(s.blocked[username], target)
	s.saveBlocked(ctx)

	if s.friends.areFriends(username, target) || s.friends.pending(username, target) || s.friends.pending(target, username) {
		s.friends.unlink(username, target)
		s.friends.dropRequest(username, target)
		s.friends.dropRequest(target, username)
		s.saveFriends(ctx)
	}
	return nil
}

// Unblock removes target from username's block list. Friendship is not restored.
func (s *Service) Unblock(ctx context.Context, username, target string) error {
	list, ok := s.blocked[username]
	if !ok || !contains(list, target) {
		return nil
	}
	if list = remove(list, target); len(list) == 0 {
		delete(s.blocked, username)
	} else {
		s.blocked[username] = list
	}
	s.saveBlocked(ctx)
	return nil
}

// Ban records a ban on target issued by admin.
func (s *Service) Ban(ctx context.Context, admin, target, reason string) (Ban, error) {
	if !s.users.IsAdmin(admin) {
		return Ban{}, ErrForbidden
	}
	if !s.users.Exists(target) {
		return Ban{}, ErrUnknownUser
	}
	if s.users.IsAdmin(target) {
		return Ban{}, ErrAdminTarget
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = DefaultBanReason
	}

	b := Ban{Reason: reason, BannedBy: admin, Time: s.now()}
	s.banned[target] = b
	s.saveBanned(ctx)
	s.logger.Infow("user banned", "target", target, "admin", admin, "reason", reason)
	return b, nil
}

// Unban lifts the ban on target.
func (s *Service) Unban(ctx context.Context, admin, target string) error {
	if !s.users.IsAdmin(admin) {
		return ErrForbidden
	}
	if _, ok := s.banned[target]; !ok {
		return ErrNotBanned
	}
	delete(s.banned, target)
	s.saveBanned(ctx)
	s.logger.Infow("user unbanned", "target", target, "admin", admin)
	return nil
}

func (s *Service) saveFriends(ctx context.Context) {
	if err := s.store.Save(ctx, store.Friends, s.friends); err != nil {
		s.logger.Errorw("persist friends", "error", err)
	}
}

func (s *Service) saveBlocked(ctx context.Context) {
	if err := s.store.Save(ctx, store.Blocked, s.blocked); err != nil {
		s.logger.Errorw("persist blocked", "error", err)
	}
}

func (s *Service) saveBanned(ctx context.Context) {
	if err := s.store.Save(ctx, store.Banned, s.banned); err != nil {
		s.logger.Errorw("persist banned", "error", err)
	}
}
