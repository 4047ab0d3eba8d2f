package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
)

// Hub fans accepted position fixes out to websocket subscribers. With a redis
// client attached it also publishes every fix and relays fixes published by
// other agent instances, so a dispatcher can watch one feed regardless of
// which process owns the session.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	SessionID string
	Send      chan []byte
}

// FixEnvelope is the wire form of one broadcast fix.
type FixEnvelope struct {
	SessionID string     `json:"sessionId"`
	Fix       geoloc.Fix `json:"fix"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.relayRedis()
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// BroadcastFix delivers one fix to subscribers. Without redis the delivery
// is direct; with redis attached the fix goes through pub/sub so every agent
// instance, this one included, sees it exactly once. Slow subscribers are
// skipped, never blocked on.
func (h *Hub) BroadcastFix(sessionID string, fix geoloc.Fix) {
	payload, err := json.Marshal(FixEnvelope{SessionID: sessionID, Fix: fix})
	if err != nil {
		log.Printf("marshal fix envelope: %v", err)
		return
	}

	if h.redis == nil {
		h.deliver(sessionID, payload)
		return
	}
	if err := h.redis.Publish(context.Background(), fixChannel(sessionID), payload).Err(); err != nil {
		log.Printf("redis publish error: %v", err)
		h.deliver(sessionID, payload)
	}
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[sessionID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) relayRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "fixes:*:live")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		if sessionID := sessionIDFromChannel(msg.Channel); sessionID != "" {
			h.deliver(sessionID, []byte(msg.Payload))
		}
	}
}

func fixChannel(sessionID string) string {
	return "fixes:" + sessionID + ":live"
}

func sessionIDFromChannel(ch string) string {
	// fixes:{session}:live
	const prefix = "fixes:"
	const suffix = ":live"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
