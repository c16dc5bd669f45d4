package hub

import "sync"

// bucket holds one user's live connections. A bucket marked dead has been
// unlinked from the registry and must not receive new connections.
type bucket struct {
	mu    sync.Mutex
	conns map[string]*Connection
	dead  bool
}

// Registry maps user ids to live connections. Each user has its own lock,
// so registering or removing one user's connection never waits on another
// user's.
type Registry struct {
	users sync.Map // user id -> *bucket
}

func (r *Registry) Add(c *Connection) {
	for {
		v, _ := r.users.LoadOrStore(c.UserID, &bucket{conns: make(map[string]*Connection)})
		b := v.(*bucket)
		b.mu.Lock()
		if b.dead {
			// Lost a race with the removal of the last connection; retry
			// against a fresh bucket.
			b.mu.Unlock()
			continue
		}
		b.conns[c.ID] = c
		b.mu.Unlock()
		return
	}
}

// Remove unlinks c and reports whether it was registered.
func (r *Registry) Remove(c *Connection) bool {
	v, ok := r.users.Load(c.UserID)
	if !ok {
		return false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[c.ID]; !ok {
		return false
	}
	delete(b.conns, c.ID)
	if len(b.conns) == 0 {
		b.dead = true
		r.users.CompareAndDelete(c.UserID, b)
	}
	return true
}

// Lookup returns a snapshot of userID's connections.
func (r *Registry) Lookup(userID string) []*Connection {
	v, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Connection, 0, len(b.conns))
	for _, c := range b.conns {
		out = append(out, c)
	}
	return out
}

// count returns the number of users with at least one connection.
func (r *Registry) count() int {
	n := 0
	r.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
