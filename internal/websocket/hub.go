package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/princekumarofficial/media-service/internal/types"
)

// Hub fans events out to the clients subscribed to a topic. Topics are job
// ids; a topic exists only while it has at least one subscriber.
type Hub struct {
	// Subscribers per topic
	topics map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Protects topics for readers outside the run loop
	mu sync.RWMutex

	broadcast chan *TopicMessage

	// Closed when Run returns
	done chan struct{}
}

// TopicMessage is an event addressed to every subscriber of a topic.
type TopicMessage struct {
	Topic string       `json:"topic"`
	Event *types.Event `json:"event"`
}

func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *TopicMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, after
// closing every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, clients := range h.topics {
				for client := range clients {
					close(client.send)
				}
				delete(h.topics, topic)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			clients, ok := h.topics[client.topic]
			if !ok {
				clients = make(map[*Client]bool)
				h.topics[client.topic] = clients
			}
			clients[client] = true
			h.mu.Unlock()
			slog.Info("WebSocket client subscribed",
				slog.String("topic", client.topic),
				slog.String("owner_id", client.ownerID))

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.publish(message)
		}
	}
}

// remove drops a client and deletes its topic when it was the last one.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.topics[client.topic]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.topics, client.topic)
	}
	slog.Info("WebSocket client unsubscribed", slog.String("topic", client.topic))
}

func (h *Hub) publish(message *TopicMessage) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.topics[message.Topic] {
		if err := client.SendEvent(message.Event); err != nil {
			slog.Warn("Dropping slow WebSocket client",
				slog.String("topic", message.Topic),
				slog.String("error", err.Error()))
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.remove(client)
	}
}

// Subscribe registers a client. It blocks until the run loop accepts it
// and reports false once the hub has stopped.
func (h *Hub) Subscribe(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every subscriber of topic. Events are dropped
// when the queue is full.
func (h *Hub) Publish(topic string, event *types.Event) {
	select {
	case h.broadcast <- &TopicMessage{Topic: topic, Event: event}:
	default:
		slog.Warn("Broadcast channel is full, dropping message", slog.String("topic", topic))
	}
}

// HasSubscribers reports whether anyone is listening on topic.
func (h *Hub) HasSubscribers(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics[topic]) > 0
}

func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics)
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.topics {
		n += len(clients)
	}
	return n
}
