package social

import "sort"

// Friends is one user's view of the friend graph.
type Friends struct {
	Friends    []string `json:"friends"`
	PendingIn  []string `json:"pending_in"`
	PendingOut []string `json:"pending_out"`
}

func (f *Friends) clone() Friends {
	return Friends{
		Friends:    append([]string{}, f.Friends...),
		PendingIn:  append([]string{}, f.PendingIn...),
		PendingOut: append([]string{}, f.PendingOut...),
	}
}

func (f *Friends) empty() bool {
	return len(f.Friends) == 0 && len(f.PendingIn) == 0 && len(f.PendingOut) == 0
}

func contains(set []string, name string) bool {
	i := sort.SearchStrings(set, name)
	return i < len(set) && set[i] == name
}

// insert adds name to the sorted set, returning the set unchanged if present.
func insert(set []string, name string) []string {
	i := sort.SearchStrings(set, name)
	if i < len(set) && set[i] == name {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = name
	return set
}

func remove(set []string, name string) []string {
	i := sort.SearchStrings(set, name)
	if i == len(set) || set[i] != name {
		return set
	}
	return append(set[:i], set[i+1:]...)
}

// graph holds the friend relation plus pending requests. Every mutation
// touches both endpoints so the relation stays symmetric.
type graph map[string]*Friends

func (g graph) of(username string) *Friends {
	f, ok := g[username]
	if !ok {
		f = &Friends{}
		g[username] = f
	}
	return f
}

func (g graph) view(username string) Friends {
	if f, ok := g[username]; ok {
		return f.clone()
	}
	return Friends{Friends: []string{}, PendingIn: []string{}, PendingOut: []string{}}
}

func (g graph) areFriends(a, b string) bool {
	f, ok := g[a]
	return ok && contains(f.Friends, b)
}

func (g graph) pending(from, to string) bool {
	f, ok := g[from]
	return ok && contains(f.PendingOut, to)
}

func (g graph) request(from, to string) {
	g.of(from).PendingOut = insert(g.of(from).PendingOut, to)
	g.of(to).PendingIn = insert(g.of(to).PendingIn, from)
}

func (g graph) dropRequest(from, to string) {
	g.of(from).PendingOut = remove(g.of(from).PendingOut, to)
	g.of(to).PendingIn = remove(g.of(to).PendingIn, from)
	g.prune(from, to)
}

func (g graph) link(a, b string) {
	g.of(a).Friends = insert(g.of(a).Friends, b)
	g.of(b).Friends = insert(g.of(b).Friends, a)
}

func (g graph) unlink(a, b string) {
	g.of(a).Friends = remove(g.of(a).Friends, b)
	g.of(b).Friends = remove(g.of(b).Friends, a)
	g.prune(a, b)
}

func (g graph) prune(names ...string) {
	for _, n := range names {
		if f, ok := g[n]; ok && f.empty() {
			delete(g, n)
		}
	}
}
