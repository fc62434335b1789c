package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"senat/internal/apperr"
	"senat/internal/store"

	"go.uber.org/zap"
)

const (
	HistoryLimit = 100
	EditWindow   = 5 * time.Minute
	maxEditText  = 500
)

var (
	ErrMessageNotFound = apperr.Ignored(apperr.NotFound, "message not found")
	ErrNotAuthor       = apperr.Ignored(apperr.Authorization, "not the author of this message")
	ErrEditExpired     = apperr.Ignored(apperr.Authorization, "edit window has passed")
)

// buckets is the persisted shape of the messages document.
type buckets struct {
	Public  map[string][]*Message `json:"public"`
	Private map[string][]*Message `json:"private"`
	Groups  map[string][]*Message `json:"groups"`
}

// Repository keeps the bounded per-room histories and writes the whole
// messages document back after every change. It is not safe for concurrent
// use; the hub is its only caller.
type Repository struct {
	logger *zap.SugaredLogger
	store  store.Store
	data   buckets
	lastID map[string]int64
}

func NewRepository(ctx context.Context, logger *zap.SugaredLogger, st store.Store) *Repository {
	r := &Repository{
		logger: logger,
		store:  st,
		lastID: make(map[string]int64),
	}
	store.LoadOrDefault(ctx, st, logger, store.Messages, &r.data)
	if r.data.Public == nil {
		r.data.Public = make(map[string][]*Message)
	}
	if r.data.Private == nil {
		r.data.Private = make(map[string][]*Message)
	}
	if r.data.Groups == nil {
		r.data.Groups = make(map[string][]*Message)
	}
	for _, b := range []map[string][]*Message{r.data.Public, r.data.Private, r.data.Groups} {
		for room, msgs := range b {
			for _, m := range msgs {
				if m.ID > r.lastID[room] {
					r.lastID[room] = m.ID
				}
			}
		}
	}
	return r
}

func (r *Repository) bucket(room string) (map[string][]*Message, string) {
	kind, room := Resolve(room)
	switch kind {
	case PrivateRoomKind:
		return r.data.Private, room
	case GroupRoom:
		return r.data.Groups, room
	default:
		return r.data.Public, room
	}
}

// nextID returns a millisecond timestamp that is strictly greater than every
// id handed out for the room so far.
func (r *Repository) nextID(room string, now time.Time) int64 {
	id := now.UnixMilli()
	if last := r.lastID[room]; id <= last {
		id = last + 1
	}
	r.lastID[room] = id
	return id
}

// Append stores m at the end of its room, evicting the oldest entries past
// HistoryLimit. m.ID is assigned here.
func (r *Repository) Append(ctx context.Context, m *Message, now time.Time) {
	b, room := r.bucket(m.Room)
	m.Room = room
	m.ID = r.nextID(room, now)
	m.CreatedAt = now

	msgs := append(b[room], m)
	if over := len(msgs) - HistoryLimit; over > 0 {
		msgs = append([]*Message(nil), msgs[over:]...)
	}
	b[room] = msgs
	r.save(ctx)
}

// Recent returns up to limit of the newest messages of room, oldest first.
func (r *Repository) Recent(room string, limit int) []Message {
	b, room := r.bucket(room)
	msgs := b[room]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}

func (r *Repository) find(room string, id int64) (map[string][]*Message, string, int) {
	b, room := r.bucket(room)
	for i, m := range b[room] {
		if m.ID == id {
			return b, room, i
		}
	}
	return b, room, -1
}

// Edit replaces the text of actor's message if it is younger than EditWindow.
func (r *Repository) Edit(ctx context.Context, room string, id int64, actor, text string, now time.Time) (Message, error) {
	b, room, i := r.find(room, id)
	if i < 0 {
		return Message{}, ErrMessageNotFound
	}
	m := b[room][i]
	if m.Username != actor {
		return Message{}, ErrNotAuthor
	}
	if now.Sub(m.CreatedAt) >= EditWindow {
		return Message{}, ErrEditExpired
	}

	if utf8.RuneCountInString(text) > maxEditText {
		text = string([]rune(text)[:maxEditText])
	}
	m.Text = strings.TrimSpace(text)
	m.Edited = true
	m.EditTime = now.Format(timeLayout)
	r.save(ctx)
	return *m, nil
}

// Delete removes a message written by actor, or any message when admin is set.
func (r *Repository) Delete(ctx context.Context, room string, id int64, actor string, admin bool) (Message, error) {
	b, room, i := r.find(room, id)
	if i < 0 {
		return Message{}, ErrMessageNotFound
	}
	m := b[room][i]
	if m.Username != actor && !admin {
		return Message{}, ErrNotAuthor
	}
	b[room] = append(b[room][:i], b[room][i+1:]...)
	r.save(ctx)
	return *m, nil
}

// Clear empties a room's history.
func (r *Repository) Clear(ctx context.Context, room string) {
	b, room := r.bucket(room)
	if _, ok := b[room]; !ok {
		return
	}
	b[room] = []*Message{}
	r.save(ctx)
}

// CreateGroup opens an empty bucket for a new group.
func (r *Repository) CreateGroup(ctx context.Context, id string) {
	r.data.Groups[id] = []*Message{}
	r.save(ctx)
}

// DropGroup discards a deleted group's history.
func (r *Repository) DropGroup(ctx context.Context, id string) {
	delete(r.data.Groups, id)
	delete(r.lastID, id)
	r.save(ctx)
}

func (r *Repository) save(ctx context.Context) {
	if err := r.store.Save(ctx, store.Messages, r.data); err != nil {
		r.logger.Errorw("persist messages", "error", err)
	}
}
