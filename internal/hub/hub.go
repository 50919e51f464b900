// Package hub fans out queue events and announcements to connected displays.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/shamadu25/rave-queue-sub001/internal/announce"
)

type Subscription struct {
	// Department filters events; empty or "all" receives everything.
	Department string
	// AudioReady is set once the display reports a user gesture unlocked
	// audio playback; until then announcements are delivered visual-only.
	AudioReady bool
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action     string `json:"action"`
	Department string `json:"department"`
	AudioReady bool   `json:"audio_ready"`
}

type announceEnvelope struct {
	Type         string                `json:"type"`
	Announcement announce.Announcement `json:"announcement"`
	Speak        bool                  `json:"speak"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

// Broadcast delivers an event payload to every display subscribed to the
// department. Slow clients drop rather than block the hub.
func (h *Hub) Broadcast(payload []byte, department string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription.Department, department) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

// Announce implements announce.Speaker: the service does not synthesize
// speech itself, it tells each subscribed display to. Displays that have not
// unlocked audio get the announcement visual-only.
func (h *Hub) Announce(a announce.Announcement) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription.Department, a.Department) {
			continue
		}
		envelope := announceEnvelope{
			Type:         "announcement",
			Announcement: a,
			Speak:        client.Subscription.AudioReady,
		}
		payload, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop announcement for client %s", client.ID)
		}
	}
	return nil
}

func match(subscribed, department string) bool {
	if subscribed == "" || subscribed == "all" {
		return true
	}
	return subscribed == department
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
