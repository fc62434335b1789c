package social

import "time"

const DefaultBanReason = "Rules violation"

// Ban records who barred a user and why.
type Ban struct {
	Reason   string    `json:"reason"`
	BannedBy string    `json:"banned_by"`
	Time     time.Time `json:"time"`
}
