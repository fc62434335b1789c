// Package store persists the chat service's named JSON documents.
//
// Every collection (users, friends, sessions, messages, blocked, banned,
// groups) is one document written in full on every mutation. Documents
// encodes and decodes them; a Backend only moves bytes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Names of the persisted collections.
const (
	Users    = "users"
	Friends  = "friends"
	Sessions = "sessions"
	Messages = "messages"
	Blocked  = "blocked"
	Banned   = "banned"
	Groups   = "groups"
)

// ErrNotFound is returned by a Backend when the named document was never saved.
var ErrNotFound = errors.New("document not found")

// Store is the load/save contract the chat components persist through.
type Store interface {
	// Load decodes the named document into v. found is false when the
	// document does not exist yet or cannot be decoded; v is then left
	// untouched.
	Load(ctx context.Context, name string, v interface{}) (found bool, err error)
	// Save replaces the named document with v.
	Save(ctx context.Context, name string, v interface{}) error
	Close() error
}

// Backend stores raw document bodies.
type Backend interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, body []byte) error
	Close() error
}

// Quarantiner is implemented by backends able to move an undecodable
// document out of the way so the next Save does not destroy it.
type Quarantiner interface {
	Quarantine(ctx context.Context, name string) error
}

// Documents implements Store on top of a Backend using JSON bodies.
type Documents struct {
	logger  *zap.SugaredLogger
	backend Backend
}

// New returns Documents writing through backend.
func New(logger *zap.SugaredLogger, backend Backend) *Documents {
	return &Documents{logger: logger, backend: backend}
}

// Load implements Store.
func (d *Documents) Load(ctx context.Context, name string, v interface{}) (bool, error) {
	dst := reflect.ValueOf(v)
	if dst.Kind() != reflect.Ptr || dst.IsNil() {
		return false, fmt.Errorf("load %s: target must be a non-nil pointer, got %T", name, v)
	}

	body, err := d.backend.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", name, err)
	}

	// decode into a fresh value so a type error halfway through cannot
	// leave a partial collection in v
	fresh := reflect.New(dst.Elem().Type())
	if err := json.Unmarshal(body, fresh.Interface()); err != nil {
		if q, ok := d.backend.(Quarantiner); ok {
			if qerr := q.Quarantine(ctx, name); qerr != nil {
				d.logger.Errorw("quarantine corrupt document", "name", name, "error", qerr)
			} else {
				d.logger.Warnw("corrupt document moved aside", "name", name)
			}
		}
		return false, fmt.Errorf("decode %s: %w", name, err)
	}

	dst.Elem().Set(fresh.Elem())
	d.logger.Debugw("document loaded", "name", name, "bytes", len(body))
	return true, nil
}

// Save implements Store.
func (d *Documents) Save(ctx context.Context, name string, v interface{}) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := d.backend.Put(ctx, name, body); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Close releases the backend.
func (d *Documents) Close() error {
	return d.backend.Close()
}

// LoadOrDefault loads name into v and reports whether a stored document was
// used. Load failures are logged and treated as a missing document, so the
// caller keeps its default collection.
func LoadOrDefault(ctx context.Context, s Store, logger *zap.SugaredLogger, name string, v interface{}) bool {
	found, err := s.Load(ctx, name, v)
	if err != nil {
		logger.Warnw("falling back to empty collection", "name", name, "error", err)
		return false
	}
	return found
}
