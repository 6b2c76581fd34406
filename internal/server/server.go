package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/npezzotti/go-gameportal/internal/stats"
	"github.com/npezzotti/go-gameportal/internal/types"
)

// ChatPoster is the chat surface reachable from a socket.
type ChatPoster interface {
	PostMessage(ctx context.Context, tag, body string) (*types.Message, error)
	MarkRead()
}

// Hub fans portal events out to every connected browser tab.
type Hub struct {
	log            *log.Logger
	chat           ChatPoster
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	registerChan   chan *Client
	deRegisterChan chan *Client
	broadcastChan  chan *ServerMessage
	stop           chan struct{}
	stopOnce       sync.Once
	done           chan struct{}
}

func NewHub(logger *log.Logger, chat ChatPoster, st stats.StatsProvider) *Hub {
	st.RegisterMetric(stats.NumActiveClients)

	return &Hub{
		log:            logger,
		chat:           chat,
		stats:          st,
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		broadcastChan:  make(chan *ServerMessage, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.registerChan:
			h.log.Printf("adding connection from %q", client.user.Username)
			h.clients[client] = struct{}{}
			h.stats.Incr(stats.NumActiveClients)
		case client := <-h.deRegisterChan:
			if _, ok := h.clients[client]; ok {
				h.log.Printf("removing connection from %q", client.user.Username)
				delete(h.clients, client)
				h.stats.Decr(stats.NumActiveClients)
			}
		case msg := <-h.broadcastChan:
			for c := range h.clients {
				c.queueMessage(msg)
			}
		case <-h.stop:
			h.log.Printf("closing %d connections", len(h.clients))
			for c := range h.clients {
				c.stopClient()
				delete(h.clients, c)
			}
			close(h.done)
			return
		}
	}
}

func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.registerChan <- c:
	case <-h.done:
	}
}

func (h *Hub) deregisterClient(c *Client) {
	select {
	case h.deRegisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) broadcast(msg *ServerMessage) {
	select {
	case h.broadcastChan <- msg:
	default:
		h.log.Printf("broadcast channel full, dropping %s event", msg.Event.Type)
	}
}

func (h *Hub) PublishMessage(tag string, m types.Message) {
	h.broadcast(MessageEvent(tag, m))
}

func (h *Hub) PublishFriend(f types.Friend) {
	h.broadcast(FriendAddedEvent(f))
}

func (h *Hub) PublishNotification(n types.Notification) {
	h.broadcast(NotificationEvent(n))
}

func (h *Hub) PublishServers(servers []types.Server) {
	h.broadcast(ServersUpdatedEvent(servers))
}

func (h *Hub) PublishConnected(s types.Server) {
	h.broadcast(ServerConnectedEvent(s))
}

// Shutdown stops the hub and closes every client.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("shutting down realtime hub...")
	h.stopOnce.Do(func() { close(h.stop) })

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hub shutdown: %w", ctx.Err())
	}
}
