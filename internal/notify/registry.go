package notify

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is one live operator connection. The transport drains Send and
// writes each frame to the socket.
type Client struct {
	ActorID uuid.UUID
	Role    string

	send    chan []byte
	closed  atomic.Bool
	dropped atomic.Int64
}

func (c *Client) Send() <-chan []byte {
	return c.send
}

// Dropped counts frames discarded because the client was not keeping up.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// offer never blocks: a full buffer means the frame is lost for this client.
func (c *Client) offer(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Registry maps actors to their live connection. One connection per actor;
// a newer connection replaces the older one.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	buffer  int
	log     *zap.Logger
}

func NewRegistry(buffer int, log *zap.Logger) *Registry {
	if buffer <= 0 {
		buffer = 1
	}
	return &Registry{
		clients: make(map[uuid.UUID]*Client),
		buffer:  buffer,
		log:     log,
	}
}

func (r *Registry) Register(actorID uuid.UUID, role string) *Client {
	c := &Client{ActorID: actorID, Role: role, send: make(chan []byte, r.buffer)}

	r.mu.Lock()
	if prev := r.clients[actorID]; prev != nil {
		prev.close()
	}
	r.clients[actorID] = c
	r.mu.Unlock()

	r.log.Info("operator connected", zap.String("actor_id", actorID.String()), zap.String("role", role))
	return c
}

// Unregister removes c if it is still the actor's current connection.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	current, ok := r.clients[c.ActorID]
	if ok && current == c {
		delete(r.clients, c.ActorID)
	}
	// Closing under the write lock keeps broadcasts off a closed channel.
	c.close()
	r.mu.Unlock()

	r.log.Info("operator disconnected", zap.String("actor_id", c.ActorID.String()))
}

// BroadcastToRole pushes ev to every client with the given role and returns
// how many accepted it.
func (r *Registry) BroadcastToRole(role string, ev Event) int {
	frame, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, c := range r.clients {
		if c.Role != role || c.closed.Load() {
			continue
		}
		if c.offer(frame) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (c *Client) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.send)
	}
}
