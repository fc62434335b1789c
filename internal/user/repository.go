package user

import (
	"context"

	"senat/internal/store"

	"go.uber.org/zap"
)

// Repository holds the in-memory users and sessions collections and writes
// them back through the document store. It is not safe for concurrent use;
// Service serializes access.
type Repository struct {
	logger   *zap.SugaredLogger
	store    store.Store
	users    map[string]*User
	sessions map[string]Session
}

func NewRepository(ctx context.Context, logger *zap.SugaredLogger, st store.Store) *Repository {
	r := &Repository{
		logger:   logger,
		store:    st,
		users:    make(map[string]*User),
		sessions: make(map[string]Session),
	}

	store.LoadOrDefault(ctx, st, logger, store.Users, &r.users)
	store.LoadOrDefault(ctx, st, logger, store.Sessions, &r.sessions)
	if r.users == nil {
		r.users = make(map[string]*User)
	}
	if r.sessions == nil {
		r.sessions = make(map[string]Session)
	}
	for name, u := range r.users {
		if u.Avatar == "" {
			u.Avatar = DefaultAvatar
		}
		if u.DisplayName == "" {
			u.DisplayName = name
		}
	}
	return r
}

func (r *Repository) get(username string) (*User, bool) {
	u, ok := r.users[username]
	return u, ok
}

func (r *Repository) put(u *User) {
	r.users[u.Username] = u
}

func (r *Repository) saveUsers(ctx context.Context) {
	if err := r.store.Save(ctx, store.Users, r.users); err != nil {
		r.logger.Errorw("persist users", "error", err)
	}
}

func (r *Repository) saveSessions(ctx context.Context) {
	if err := r.store.Save(ctx, store.Sessions, r.sessions); err != nil {
		r.logger.Errorw("persist sessions", "error", err)
	}
}
