package broker

import (
	"fmt"
	"log"
	"sync"

	"rebaltrader/internal/config"
)

// Connection is one endpoint of the broker pool. The provider handle stays
// nil until Connect succeeds; callers go through Provider() and get
// ErrConnectionUnavailable instead of a nil dereference.
type Connection struct {
	Name     string
	BaseURL  string
	ClientID int
	Role     string

	mu       sync.Mutex
	provider MarketProvider
}

func NewConnection(cfg config.Broker) *Connection {
	return &Connection{
		Name:     cfg.Name,
		BaseURL:  cfg.BaseURL,
		ClientID: cfg.ClientID,
		Role:     cfg.Role,
	}
}

// Connect builds and validates the provider. On failure the handle stays nil
// and the connection remains usable for a later retry.
func (c *Connection) Connect() error {
	p, err := NewAlpacaProvider(c.BaseURL)
	if err != nil {
		return fmt.Errorf("connecting %s (client id %d): %w", c.Name, c.ClientID, err)
	}
	c.mu.Lock()
	c.provider = p
	c.mu.Unlock()
	log.Printf("Broker connection %s established (client id %d, role %s)", c.Name, c.ClientID, c.Role)
	return nil
}

// Disconnect drops the handle. Subsequent Provider() calls fail until the
// next Connect.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.provider = nil
	c.mu.Unlock()
	log.Printf("Broker connection %s closed", c.Name)
}

// Provider returns the live handle, or ErrConnectionUnavailable.
func (c *Connection) Provider() (MarketProvider, error) {
	c.mu.Lock()
	p := c.provider
	c.mu.Unlock()
	if p == nil {
		return nil, fmt.Errorf("%s: %w", c.Name, ErrConnectionUnavailable)
	}
	return p, nil
}
