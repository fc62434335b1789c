// Package group keeps the group chats, their members and their admins.
package group

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"senat/internal/apperr"
	"senat/internal/store"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

const maxName = 64

var (
	ErrNotFound      = apperr.Ignored(apperr.NotFound, "group not found")
	ErrForbidden     = apperr.New(apperr.Authorization, "you have no rights in this group")
	ErrNotCreator    = apperr.New(apperr.Authorization, "only the creator can do that")
	ErrRemoveCreator = apperr.New(apperr.Authorization, "the creator cannot be removed")
	ErrUnknownUser   = apperr.New(apperr.NotFound, "user not found")
	ErrNotMember     = apperr.New(apperr.Validation, "user is not a member of this group")
)

// UserDirectory reports whether an account exists.
type UserDirectory interface {
	Exists(username string) bool
}

// Registry owns the groups document. It is not safe for concurrent use.
type Registry struct {
	logger *zap.SugaredLogger
	store  store.Store
	users  UserDirectory
	now    func() time.Time
	groups map[string]*Group
}

func NewRegistry(ctx context.Context, logger *zap.SugaredLogger, st store.Store, users UserDirectory) *Registry {
	r := &Registry{
		logger: logger,
		store:  st,
		users:  users,
		now:    time.Now,
		groups: make(map[string]*Group),
	}
	store.LoadOrDefault(ctx, st, logger, store.Groups, &r.groups)
	if r.groups == nil {
		r.groups = make(map[string]*Group)
	}
	for id, g := range r.groups {
		g.ID = id
		if g.Avatar == "" {
			g.Avatar = DefaultAvatar
		}
	}
	return r
}

// IsGroupID reports whether room names a group.
func IsGroupID(room string) bool {
	return strings.HasPrefix(room, IDPrefix)
}

// Create makes a new group whose only member and admin is creator.
func (r *Registry) Create(ctx context.Context, creator, name string) Group {
	if name = clampName(name); name == "" {
		name = fmt.Sprintf("Group @%s", creator)
	}
	g := &Group{
		ID:        fmt.Sprintf("%s%s_%s", IDPrefix, xid.New().String(), creator),
		Name:      name,
		Avatar:    DefaultAvatar,
		Creator:   creator,
		Admins:    []string{creator},
		Members:   []string{creator},
		CreatedAt: r.now(),
	}
	r.groups[g.ID] = g
	r.save(ctx)
	r.logger.Infow("group created", "group", g.ID, "creator", creator)
	return g.clone()
}

func (r *Registry) Get(id string) (Group, bool) {
	g, ok := r.groups[id]
	if !ok {
		return Group{}, false
	}
	return g.clone(), true
}

func (r *Registry) IsMember(id, username string) bool {
	g, ok := r.groups[id]
	return ok && g.IsMember(username)
}

// ListFor returns the groups username belongs to, oldest first.
func (r *Registry) ListFor(username string) []Group {
	list := []Group{}
	for _, g := range r.groups {
		if g.IsMember(username) {
			list = append(list, g.clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// AddMember adds target to the group. added is false when target was
// already a member.
func (r *Registry) AddMember(ctx context.Context, actor, id, target string) (g Group, added bool, err error) {
	grp, err := r.managed(actor, id)
	if err != nil {
		return Group{}, false, err
	}
	if !r.users.Exists(target) {
		return Group{}, false, ErrUnknownUser
	}
	if grp.IsMember(target) {
		return grp.clone(), false, nil
	}
	grp.Members = append(grp.Members, target)
	r.save(ctx)
	return grp.clone(), true, nil
}

// RemoveMember drops target from the group and from its admins.
func (r *Registry) RemoveMember(ctx context.Context, actor, id, target string) (Group, error) {
	grp, err := r.managed(actor, id)
	if err != nil {
		return Group{}, err
	}
	if target == grp.Creator {
		return Group{}, ErrRemoveCreator
	}
	if !grp.IsMember(target) {
		return Group{}, ErrNotMember
	}
	grp.Members = without(grp.Members, target)
	grp.Admins = without(grp.Admins, target)
	r.save(ctx)
	return grp.clone(), nil
}

// SetAdmin grants or revokes group admin rights. Only the creator may do
// this and the creator always stays an admin.
func (r *Registry) SetAdmin(ctx context.Context, actor, id, target string, admin bool) (Group, error) {
	grp, ok := r.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	if actor != grp.Creator {
		return Group{}, ErrNotCreator
	}
	if !grp.IsMember(target) {
		return Group{}, ErrNotMember
	}
	if target == grp.Creator {
		return grp.clone(), nil
	}

	switch {
	case admin && !has(grp.Admins, target):
		grp.Admins = append(grp.Admins, target)
	case !admin && has(grp.Admins, target):
		grp.Admins = without(grp.Admins, target)
	default:
		return grp.clone(), nil
	}
	r.save(ctx)
	return grp.clone(), nil
}

// Update applies the non-empty fields of upd.
func (r *Registry) Update(ctx context.Context, actor, id string, upd Update) (Group, error) {
	grp, err := r.managed(actor, id)
	if err != nil {
		return Group{}, err
	}
	if upd.Name != nil {
		if name := clampName(*upd.Name); name != "" {
			grp.Name = name
		}
	}
	if upd.Avatar != nil {
		if avatar := strings.TrimSpace(*upd.Avatar); avatar != "" {
			grp.Avatar = avatar
		}
	}
	r.save(ctx)
	return grp.clone(), nil
}

// Delete removes the group. Only its creator may do so.
func (r *Registry) Delete(ctx context.Context, actor, id string) (Group, error) {
	grp, ok := r.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	if actor != grp.Creator {
		return Group{}, ErrNotCreator
	}
	delete(r.groups, id)
	r.save(ctx)
	r.logger.Infow("group deleted", "group", id, "creator", actor)
	return grp.clone(), nil
}

func (r *Registry) managed(actor, id string) (*Group, error) {
	grp, ok := r.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !grp.CanManage(actor) {
		return nil, ErrForbidden
	}
	return grp, nil
}

func (r *Registry) save(ctx context.Context) {
	if err := r.store.Save(ctx, store.Groups, r.groups); err != nil {
		r.logger.Errorw("persist groups", "error", err)
	}
}

func clampName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxName {
		name = string([]rune(name)[:maxName])
	}
	return name
}
