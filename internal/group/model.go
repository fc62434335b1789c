package group

import "time"

const (
	IDPrefix      = "group_"
	DefaultAvatar = "👥"
)

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Creator   string    `json:"creator"`
	Admins    []string  `json:"admins"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created"`
}

func (g *Group) IsMember(username string) bool {
	return has(g.Members, username)
}

// CanManage reports whether username may change membership and metadata.
func (g *Group) CanManage(username string) bool {
	return username == g.Creator || has(g.Admins, username)
}

func (g *Group) clone() Group {
	c := *g
	c.Admins = append([]string{}, g.Admins...)
	c.Members = append([]string{}, g.Members...)
	return c
}

// Update is a partial metadata change; nil fields are left alone.
type Update struct {
	Name   *string
	Avatar *string
}

func has(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func without(list []string, name string) []string {
	out := list[:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
