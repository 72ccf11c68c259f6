package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastWallet(t *testing.T) {
	hub := NewHub()
	first := &Client{send: make(chan []byte, 1)}
	second := &Client{send: make(chan []byte, 1)}
	other := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", first)
	hub.Register("user-1", second)
	hub.Register("user-2", other)

	hub.BroadcastWallet("user-1", WalletUpdate{TournamentCredits: 150, Earnings: "0.00"})

	for _, client := range []*Client{first, second} {
		select {
		case payload := <-client.send:
			var update WalletUpdate
			require.NoError(t, json.Unmarshal(payload, &update))
			assert.Equal(t, "wallet", update.Type)
			assert.Equal(t, int64(150), update.TournamentCredits)
		default:
			t.Fatalf("expected an update for user-1")
		}
	}
	assert.Len(t, other.send, 0)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", client)

	hub.BroadcastWallet("user-1", WalletUpdate{HostCredits: 1})
	hub.BroadcastWallet("user-1", WalletUpdate{HostCredits: 2})

	assert.Len(t, client.send, 1)
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", client)
	assert.Equal(t, 1, hub.ClientCount("user-1"))

	hub.Unregister("user-1", client)
	hub.Unregister("user-1", client)
	assert.Equal(t, 0, hub.ClientCount("user-1"))
}
