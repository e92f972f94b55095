package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pliu/roomlet/internal/models"
)

// EventApplicationCreated is pushed to a room owner when someone applies.
const EventApplicationCreated = "application.created"

var ErrHubStopped = errors.New("websocket hub stopped")

// Event is the envelope of every message pushed to clients.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// ApplicationPayload is the payload of EventApplicationCreated.
type ApplicationPayload struct {
	RoomID      int64               `json:"room_id"`
	RoomTitle   string              `json:"room_title"`
	Application *models.Application `json:"application"`
}

type notification struct {
	userID int64
	data   []byte
}

type countQuery struct {
	userID int64
	reply  chan int
}

// Hub tracks live connections per user. All state is owned by the Run loop.
type Hub struct {
	// Registered clients, by user.
	clients map[int64]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Outbound messages for one user's connections.
	notify chan notification

	count chan countQuery
	done  chan struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan notification),
		count:      make(chan countQuery),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes hub events until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					h.drop(client)
				}
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.logger.Debug("websocket client connected", zap.Int64("user_id", client.userID), zap.Int("connections", len(set)))
		case client := <-h.unregister:
			h.drop(client)
		case n := <-h.notify:
			for client := range h.clients[n.userID] {
				select {
				case client.send <- n.data:
				default:
					// Slow consumer
					h.drop(client)
				}
			}
		case q := <-h.count:
			q.reply <- len(h.clients[q.userID])
		}
	}
}

func (h *Hub) drop(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
}

// Notify pushes event to every live connection of userID. Users without a
// connection are skipped silently.
func (h *Hub) Notify(ctx context.Context, userID int64, eventType string, payload any) error {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	select {
	case h.notify <- notification{userID: userID, data: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplicationCreated tells the room owner about a new application.
func (h *Hub) ApplicationCreated(ctx context.Context, room *models.Room, app *models.Application) error {
	return h.Notify(ctx, room.OwnerID, EventApplicationCreated, ApplicationPayload{
		RoomID:      room.ID,
		RoomTitle:   room.Title,
		Application: app,
	})
}

// Connections returns how many live connections userID has.
func (h *Hub) Connections(userID int64) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countQuery{userID: userID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}
