package gateway

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
)

// OneTimeTickets remembers the most recent accepted tickets and rejects a
// second login with any of them.
type OneTimeTickets struct {
	mu   sync.Mutex
	seen *lru.Cache[string, uint64]
}

// NewOneTimeTickets keeps up to size tickets.
func NewOneTimeTickets(size int) (*OneTimeTickets, error) {
	seen, err := lru.New[string, uint64](size)
	if err != nil {
		return nil, err
	}
	return &OneTimeTickets{seen: seen}, nil
}

// Validate implements TicketValidator. Empty tickets are always rejected.
func (t *OneTimeTickets) Validate(_ Peer, req gwproto.LoginRequest) bool {
	if req.Ticket == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen.Contains(req.Ticket) {
		return false
	}
	t.seen.Add(req.Ticket, req.CharacterID)
	return true
}

func (t *OneTimeTickets) Len() int { return t.seen.Len() }
