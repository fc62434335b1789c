package chat

import "time"

const (
	systemAuthor = "🔵 System"
	timeLayout   = "15:04"
)

// Message is one entry of a room's history.
type Message struct {
	ID          int64     `json:"id"`
	Room        string    `json:"room"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
	IsAdmin     bool      `json:"is_admin"`
	Text        string    `json:"msg"`
	ContentType string    `json:"content_type,omitempty"`
	Time        string    `json:"time"`
	ReplyTo     *int64    `json:"reply_to"`
	Edited      bool      `json:"edited"`
	EditTime    string    `json:"edit_time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SystemMessage is an announcement that is delivered but never stored.
type SystemMessage struct {
	Username string `json:"username"`
	Text     string `json:"msg"`
	Time     string `json:"time"`
	Room     string `json:"room"`
	Type     string `json:"type"`
}

func systemMessage(room, text string, now time.Time) SystemMessage {
	return SystemMessage{
		Username: systemAuthor,
		Text:     text,
		Time:     now.Format(timeLayout),
		Room:     room,
		Type:     "system",
	}
}
