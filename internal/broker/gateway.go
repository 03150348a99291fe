package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"rebaltrader/internal/config"
	"rebaltrader/internal/models"
)

// How long ResolvePrice waits on a live stream before giving up on a ticker.
const defaultStreamWait = 30 * time.Second

// RunLogger receives the per-session narration of price resolution and
// submission. The executor's session log satisfies it.
type RunLogger interface {
	Logf(format string, args ...any)
}

// Gateway fronts the broker connection pool. Quotes and order routing may go
// through different endpoints; with a single configured broker both roles
// fall on it.
type Gateway struct {
	quote *Connection
	trade *Connection
	conns []*Connection

	limitOffset decimal.Decimal // fraction, e.g. 0.021
	streamWait  time.Duration
}

// NewGateway builds the pool from the configured brokers. limitOffsetPct is
// the limit-price margin in percent.
func NewGateway(brokers []config.Broker, limitOffsetPct float64) *Gateway {
	g := &Gateway{
		limitOffset: decimal.NewFromFloat(limitOffsetPct).Div(decimal.NewFromInt(100)),
		streamWait:  defaultStreamWait,
	}
	for _, b := range brokers {
		conn := NewConnection(b)
		g.conns = append(g.conns, conn)
		switch b.Role {
		case config.RoleQuote:
			g.quote = conn
		case config.RoleTrade:
			g.trade = conn
		}
	}
	// A single broker serves both roles.
	if g.quote == nil && len(g.conns) > 0 {
		g.quote = g.conns[0]
	}
	if g.trade == nil && len(g.conns) > 0 {
		g.trade = g.conns[len(g.conns)-1]
	}
	return g
}

// Connect brings up every pool member. Individual failures are joined and
// returned so the caller can log them; connections that did come up stay
// usable.
func (g *Gateway) Connect() error {
	var errs []error
	for _, c := range g.conns {
		if err := c.Connect(); err != nil {
			log.Printf("WARN: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drops every pool member.
func (g *Gateway) Close() {
	for _, c := range g.conns {
		c.Disconnect()
	}
}

// ResolvePrice returns the price an order should be sized against, trying
// three tiers in order: a usable price carried on the order wins without any
// network traffic; then the quote connection's latest-trade REST lookup; only
// when that yields nothing does a live stream wait for the first tick.
func (g *Gateway) ResolvePrice(ctx context.Context, order models.Order) (decimal.Decimal, error) {
	if order.KnownPrice != nil && order.KnownPrice.IsPositive() {
		return *order.KnownPrice, nil
	}
	p, err := roleProvider(g.quote)
	if err != nil {
		return decimal.Zero, err
	}

	price, err := p.LatestTradePrice(order.Ticker)
	if err != nil {
		log.Printf("Latest trade lookup for %s failed, falling back to stream: %v", order.Ticker, err)
	} else if price.IsPositive() {
		return price, nil
	}

	price, err = p.StreamFirstTick(ctx, order.Ticker, g.streamWait)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive tick for %s: %w", order.Ticker, ErrPriceUnresolved)
	}
	return price, nil
}

// roleProvider resolves a role connection to its live handle. A pool with the
// role entirely unconfigured reports ErrConnectionUnavailable like a
// configured-but-down one does.
func roleProvider(c *Connection) (MarketProvider, error) {
	if c == nil {
		return nil, ErrConnectionUnavailable
	}
	return c.Provider()
}

// limitPrice pads the resolved price by the configured margin so a DAY limit
// order fills like a market order without being exposed to a wild print.
func (g *Gateway) limitPrice(side models.Side, price decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == models.SideBuy {
		return price.Mul(one.Add(g.limitOffset)).Round(2)
	}
	return price.Mul(one.Sub(g.limitOffset)).Round(2)
}

// Submit resolves prices, sizes each order into whole shares and places DAY
// limit orders. Every failure is per-order: a rejected or unpriceable order
// is logged and the rest of the batch continues. In simulation everything up
// to the broker call runs; the call itself is skipped. Returns the count of
// orders actually placed.
func (g *Gateway) Submit(ctx context.Context, orders []models.Order, simulation bool, rl RunLogger) int {
	if len(orders) == 0 {
		rl.Logf("No orders to submit")
		return 0
	}
	rl.Logf("Submitting %d order(s), simulation: %v", len(orders), simulation)

	submitted := 0
	for _, o := range orders {
		price, err := g.ResolvePrice(ctx, o)
		if err != nil {
			rl.Logf("  SKIP %s %s: %v", o.Side, o.Ticker, err)
			continue
		}
		shares := o.MarketValue.Div(price).IntPart()
		if shares <= 0 {
			rl.Logf("  SKIP %s %s: value $%s too small at $%s", o.Side, o.Ticker, o.MarketValue.StringFixed(2), price.StringFixed(2))
			continue
		}
		limit := g.limitPrice(o.Side, price)
		rl.Logf("  %s %s (%s): price $%s, shares %d, limit $%s",
			o.Side, o.Ticker, o.CompanyName, price.StringFixed(2), shares, limit.StringFixed(2))

		if simulation {
			rl.Logf("  simulation, order not sent")
			continue
		}

		p, err := roleProvider(g.trade)
		if err != nil {
			rl.Logf("  SKIP %s %s: %v", o.Side, o.Ticker, err)
			continue
		}
		orderID, err := p.PlaceLimitOrder(o.Ticker, shares, o.Side, limit)
		if err != nil {
			rl.Logf("  FAILED %s %s: %v", o.Side, o.Ticker, fmt.Errorf("%w: %v", ErrOrderRejected, err))
			continue
		}
		rl.Logf("  order %s accepted", orderID)
		submitted++
	}
	return submitted
}
