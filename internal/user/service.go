package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"senat/internal/apperr"
	"senat/internal/blob"
	"senat/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer    = "senat"
	maxDisplayName = 64
	maxPassword    = 72 // bcrypt ignores everything past this
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9.-]{3,32}$`)

var (
	ErrMissingFields     = apperr.New(apperr.Validation, "fill in all fields")
	ErrInvalidUsername   = apperr.New(apperr.Validation, "username must be 3-32 letters, digits, dots or dashes")
	ErrPasswordTooLong   = apperr.New(apperr.Validation, "password must be at most 72 bytes")
	ErrUserExists        = apperr.New(apperr.StateConflict, "username is already taken")
	ErrUserNotFound      = apperr.New(apperr.NotFound, "user not found")
	ErrInvalidCredential = apperr.New(apperr.Validation, "wrong password")
	ErrInvalidToken      = apperr.New(apperr.Authorization, "invalid or expired token")
	ErrAlreadyOnline     = apperr.New(apperr.StateConflict, "user is already online")
)

type Option interface {
	apply(*Service)
}

type optionFunc func(s *Service)

func (f optionFunc) apply(s *Service) { f(s) }

// TokenTTL sets how long remember-me tokens stay valid.
func TokenTTL(d time.Duration) Option {
	return optionFunc(func(s *Service) {
		s.tokenTTL = d
	})
}

// BcryptCost sets the cost used for new password hashes.
func BcryptCost(cost int) Option {
	return optionFunc(func(s *Service) {
		s.bcryptCost = cost
	})
}

// Admins marks usernames that are granted the admin role on registration
// and on every start.
func Admins(names ...string) Option {
	return optionFunc(func(s *Service) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				s.admins[n] = true
			}
		}
	})
}

// Blobs routes data-URI avatars to a blob store.
func Blobs(b blob.Store) Option {
	return optionFunc(func(s *Service) {
		s.blobs = b
	})
}

// Clock overrides time.Now.
func Clock(now func() time.Time) Option {
	return optionFunc(func(s *Service) {
		s.now = now
	})
}

type Service struct {
	mu         sync.RWMutex
	logger     *zap.SugaredLogger
	repo       *Repository
	blobs      blob.Store
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
	admins     map[string]bool
	now        func() time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

func NewService(ctx context.Context, logger *zap.SugaredLogger, st store.Store, secret string, opts ...Option) *Service {
	s := &Service{
		logger:     logger,
		jwtSecret:  []byte(secret),
		tokenTTL:   30 * 24 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
		admins:     make(map[string]bool),
		now:        time.Now,
	}
	for _, o := range opts {
		o.apply(s)
	}
	s.repo = NewRepository(ctx, logger, st)

	promoted := false
	for name := range s.admins {
		if u, ok := s.repo.get(name); ok && !u.IsAdmin {
			u.IsAdmin = true
			promoted = true
		}
	}
	if promoted {
		s.repo.saveUsers(ctx)
	}
	return s
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrMissingFields
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(req.Password) > maxPassword {
		return nil, ErrPasswordTooLong
	}

	hashedPwd := req.PasswordHash
	if hashedPwd == "" {
		var err error
		if hashedPwd, err = s.HashPassword(req.Password); err != nil {
			return nil, err
		}
	}

	displayName := clampDisplayName(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	avatar, err := s.storeAvatar(ctx, req.Avatar)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repo.get(username); ok {
		return nil, ErrUserExists
	}

	now := s.now()
	u := &User{
		Username:     username,
		PasswordHash: hashedPwd,
		DisplayName:  displayName,
		Avatar:       avatar,
		CreatedAt:    now,
		LastSeen:     now,
		IsAdmin:      s.admins[username],
	}
	s.repo.put(u)
	s.repo.saveUsers(ctx)

	s.logger.Infow("user registered", "username", username, "admin", u.IsAdmin)
	copied := *u
	return &copied, nil
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	u, ok := s.repo.get(strings.TrimSpace(username))
	var copied User
	if ok {
		copied = *u
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrUserNotFound
	}
	if !s.PasswordMatches(copied.PasswordHash, password) {
		return nil, ErrInvalidCredential
	}
	return &copied, nil
}

// HashPassword returns the bcrypt hash Register stores for password.
func (s *Service) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// PasswordMatches reports whether password hashes to hash.
func (s *Service) PasswordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Get returns a copy of the named user.
func (s *Service) Get(username string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.repo.get(username)
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (s *Service) Exists(username string) bool {
	_, ok := s.Get(username)
	return ok
}

func (s *Service) IsAdmin(username string) bool {
	u, ok := s.Get(username)
	return ok && u.IsAdmin
}

// Touch records that the user was seen now.
func (s *Service) Touch(ctx context.Context, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.repo.get(username); ok {
		u.LastSeen = s.now()
		s.repo.saveUsers(ctx)
	}
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, username string, upd ProfileUpdate) (User, error) {
	var avatar string
	if upd.Avatar != nil && *upd.Avatar != "" {
		var err error
		if avatar, err = s.storeAvatar(ctx, *upd.Avatar); err != nil {
			return User{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.repo.get(username)
	if !ok {
		return User{}, ErrUserNotFound
	}
	if avatar != "" {
		u.Avatar = avatar
	}
	if upd.DisplayName != nil {
		if name := clampDisplayName(*upd.DisplayName); name != "" {
			u.DisplayName = name
		}
	}
	s.repo.saveUsers(ctx)
	return *u, nil
}

// SetAdmin grants or revokes the admin role.
func (s *Service) SetAdmin(ctx context.Context, username string, admin bool) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.repo.get(username)
	if !ok {
		return User{}, ErrUserNotFound
	}
	u.IsAdmin = admin
	s.repo.saveUsers(ctx)
	s.logger.Infow("admin role changed", "username", username, "admin", admin)
	return *u, nil
}

// All returns every user sorted by username.
func (s *Service) All() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.repo.users))
	for _, u := range s.repo.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// Search matches query case-insensitively against usernames and display
// names. An empty query matches everyone. exclude is skipped.
func (s *Service) Search(query, exclude string, limit int) []User {
	query = strings.ToLower(strings.TrimSpace(query))

	var found []User
	for _, u := range s.All() {
		if u.Username == exclude {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.Username), query) &&
			!strings.Contains(strings.ToLower(u.DisplayName), query) {
			continue
		}
		found = append(found, u)
		if limit > 0 && len(found) == limit {
			break
		}
	}
	return found
}

// IssueToken creates a remember-me token and records it so it can be revoked.
func (s *Service) IssueToken(ctx context.Context, username string) (string, error) {
	now := s.now()
	id := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	ss, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for tid, sess := range s.repo.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.repo.sessions, tid)
		}
	}
	s.repo.sessions[id] = Session{Username: username, IssuedAt: now, ExpiresAt: now.Add(s.tokenTTL)}
	s.repo.saveSessions(ctx)

	return ss, nil
}

// ValidateToken returns the username a live remember-me token belongs to.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.repo.sessions[claims.ID]
	if !ok || sess.Username != claims.Subject {
		return "", ErrInvalidToken
	}
	if _, ok := s.repo.get(sess.Username); !ok {
		return "", ErrUserNotFound
	}
	return sess.Username, nil
}

// RevokeToken forgets the session behind tokenString. Unknown tokens are ignored.
func (s *Service) RevokeToken(ctx context.Context, tokenString string) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repo.sessions[claims.ID]; ok {
		delete(s.repo.sessions, claims.ID)
		s.repo.saveSessions(ctx)
	}
}

func (s *Service) parse(tokenString string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) storeAvatar(ctx context.Context, avatar string) (string, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return DefaultAvatar, nil
	}
	if !blob.IsDataURI(avatar) || s.blobs == nil {
		return avatar, nil
	}

	data, contentType, err := blob.DecodeDataURI(avatar)
	if err != nil {
		if errors.Is(err, blob.ErrNotDataURI) {
			return "", apperr.New(apperr.Validation, "avatar must be a base64 data uri")
		}
		return "", apperr.New(apperr.Validation, "avatar is not valid base64")
	}
	ref, err := s.blobs.Put(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return ref, nil
}

func clampDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxDisplayName {
		name = string([]rune(name)[:maxDisplayName])
	}
	return name
}
