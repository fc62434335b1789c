package user

import "time"

// DefaultAvatar is shown for users that never picked one.
const DefaultAvatar = "👤"

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	DisplayName  string    `json:"display_name"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created"`
	LastSeen     time.Time `json:"last_seen"`
	IsAdmin      bool      `json:"is_admin"`
}

// Profile is the public view of a User.
type Profile struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	IsAdmin     bool      `json:"is_admin"`
	LastSeen    time.Time `json:"last_seen"`
}

func (u *User) Profile() Profile {
	return Profile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		IsAdmin:     u.IsAdmin,
		LastSeen:    u.LastSeen,
	}
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`

	// PasswordHash, when set, is a bcrypt hash of Password computed by the
	// caller and is stored as is.
	PasswordHash string `json:"-"`
}

type RegisterResponse struct {
	Username string `json:"username"`
}

// ProfileUpdate carries the optional fields of a profile change.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	Avatar      *string `json:"avatar"`
}

// Session is a persisted remember-me grant, keyed by the token id.
type Session struct {
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
