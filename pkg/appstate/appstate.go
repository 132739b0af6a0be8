// Package appstate holds the client-session state shared by the grid's
// owning component tree: active table, environment, and user preferences.
//
// The container is constructed explicitly and injected; there is no
// package-level singleton. Readers take immutable snapshots, writers go
// through Update, and subscribers observe every committed change.
package appstate

import "sync"

// State is the session state snapshot.
type State struct {
	// ActiveTable is the table key the grid is currently mounted on.
	ActiveTable string

	// Environment names the backend environment (production, staging).
	Environment string

	// PageSize is the user's preferred rows-per-page.
	PageSize int

	// RelationDisplayCount is the user's bubble-label cap override;
	// 0 means the grid default.
	RelationDisplayCount int

	// Preferences holds free-form UI preferences.
	Preferences map[string]string
}

func (s State) clone() State {
	out := s
	if s.Preferences != nil {
		out.Preferences = make(map[string]string, len(s.Preferences))
		for k, v := range s.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}

// Container is an observable state cell.
type Container struct {
	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewContainer creates a container with an initial state.
func NewContainer(initial State) *Container {
	return &Container{
		state: initial.clone(),
		subs:  make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (c *Container) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Update applies fn to the state and notifies subscribers with the result.
func (c *Container) Update(fn func(*State)) {
	c.mu.Lock()
	next := c.state.clone()
	fn(&next)
	c.state = next
	notified := next.clone()
	fns := make([]func(State), 0, len(c.subs))
	for _, sub := range c.subs {
		fns = append(fns, sub)
	}
	c.mu.Unlock()

	for _, sub := range fns {
		sub(notified)
	}
}

// Subscribe registers a callback fired after every Update. The returned
// function unsubscribes.
func (c *Container) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
