package realtime

import "sync"

// Registry tracks open connections. An actor may hold several connections, one per client.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	byActor map[string]map[string]struct{}
	closed  bool
}

func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[string]*Connection),
		byActor: make(map[string]map[string]struct{}),
	}
}

// Attach registers conn and starts its write loop. It reports false after Close.
func (r *Registry) Attach(conn *Connection) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.conns[conn.ID] = conn
	set := r.byActor[conn.ActorID]
	if set == nil {
		set = make(map[string]struct{})
		r.byActor[conn.ActorID] = set
	}
	set[conn.ID] = struct{}{}
	r.mu.Unlock()

	conn.Start()
	return true
}

// Detach removes conn if it is still tracked.
func (r *Registry) Detach(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn.ID)
	if set, ok := r.byActor[conn.ActorID]; ok {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(r.byActor, conn.ActorID)
		}
	}
}

// Len returns the number of tracked connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ActorConnections returns how many connections actorID holds.
func (r *Registry) ActorConnections(actorID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byActor[actorID])
}

// Close terminates every tracked connection. Later Attach calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.byActor = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "server shutdown")
	}
}
