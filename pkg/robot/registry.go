package robot

import (
	"sort"
	"strconv"
	"sync"
)

// Registry maps a gateway account id to the robots bound to it, in creation
// order. Several robots may share an account; all of them receive its events.
type Registry struct {
	mu     sync.RWMutex
	robots map[string][]*Robot
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{robots: make(map[string][]*Robot)}
}

func accountKey(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

// Add appends r to its account's list
func (g *Registry) Add(r *Robot) {
	key := accountKey(r.AccountID())

	g.mu.Lock()
	defer g.mu.Unlock()
	g.robots[key] = append(g.robots[key], r)
}

// Lookup returns a copy of the robots bound to accountID; nil when none are
func (g *Registry) Lookup(accountID int64) []*Robot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	list, ok := g.robots[accountKey(accountID)]
	if !ok {
		return nil
	}
	return append([]*Robot(nil), list...)
}

// Contains reports whether any robot is bound to accountID
func (g *Registry) Contains(accountID int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.robots[accountKey(accountID)]
	return ok
}

// Accounts lists the registered account ids in ascending order
func (g *Registry) Accounts() []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]int64, 0, len(g.robots))
	for key := range g.robots {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len counts registered robots across all accounts
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, list := range g.robots {
		n += len(list)
	}
	return n
}
