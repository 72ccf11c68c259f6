package websocket

import (
	"encoding/json"
	"sync"
)

// WalletUpdate is pushed to every socket a user has open after a committed
// wallet change.
type WalletUpdate struct {
	Type              string `json:"type"`
	TournamentCredits int64  `json:"tournament_credits"`
	HostCredits       int64  `json:"host_credits"`
	Earnings          string `json:"earnings"`
	Reason            string `json:"reason,omitempty"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// ClientCount reports how many sockets userID has open.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// BroadcastWallet queues update on each of the user's sockets. Slow clients
// whose buffer is full miss the update rather than block the caller.
func (h *Hub) BroadcastWallet(userID string, update WalletUpdate) {
	if update.Type == "" {
		update.Type = "wallet"
	}
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
