package broker

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/shopspring/decimal"

	"rebaltrader/internal/models"
)

// MarketProvider is the behavior a connected broker endpoint exposes. Any
// struct implementing these methods satisfies it, which lets tests swap in a
// mock without touching the gateway.
type MarketProvider interface {
	// LatestTradePrice fetches the most recent trade print over REST.
	LatestTradePrice(ticker string) (decimal.Decimal, error)
	// StreamFirstTick opens a live stream for the ticker and returns the
	// first traded price, or ErrPriceUnresolved if none arrives before the
	// deadline.
	StreamFirstTick(ctx context.Context, ticker string, wait time.Duration) (decimal.Decimal, error)
	// PlaceLimitOrder submits a DAY limit order and returns the broker's
	// order id.
	PlaceLimitOrder(ticker string, qty int64, side models.Side, limitPrice decimal.Decimal) (string, error)
}

// AlpacaProvider implements MarketProvider against the Alpaca API.
type AlpacaProvider struct {
	tradeClient *alpaca.Client
	mdClient    *marketdata.Client
	keyID       string
	secretKey   string
}

// NewAlpacaProvider builds clients against the given base URL and validates
// the credentials with an account fetch, so a dead endpoint fails at connect
// time rather than mid-session.
func NewAlpacaProvider(baseURL string) (*AlpacaProvider, error) {
	keyID := os.Getenv("APCA_API_KEY_ID")
	secretKey := os.Getenv("APCA_API_SECRET_KEY")

	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    keyID,
		APISecret: secretKey,
		BaseURL:   baseURL,
	})
	if _, err := client.GetAccount(); err != nil {
		return nil, fmt.Errorf("validating account at %s: %w", baseURL, err)
	}

	return &AlpacaProvider{
		tradeClient: client,
		mdClient: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    keyID,
			APISecret: secretKey,
		}),
		keyID:     keyID,
		secretKey: secretKey,
	}, nil
}

// LatestTradePrice asks for the most recent trade print. Outside the
// instrument's trading session this still answers with the last session's
// print, which is why it is tried before the live stream.
func (a *AlpacaProvider) LatestTradePrice(ticker string) (decimal.Decimal, error) {
	trade, err := a.mdClient.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest trade for %s: %w", ticker, err)
	}
	if trade == nil {
		return decimal.Zero, fmt.Errorf("no trade print for %s: %w", ticker, ErrPriceUnresolved)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

// StreamFirstTick subscribes to live trades for a single ticker and waits for
// the first one. The stream client is short-lived: subscribe, connect, take
// one trade, tear down.
func (a *AlpacaProvider) StreamFirstTick(ctx context.Context, ticker string, wait time.Duration) (decimal.Decimal, error) {
	sctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticks := make(chan float64, 1)
	tradeHandler := func(t stream.Trade) {
		select {
		case ticks <- t.Price:
		default: // only the first tick matters
		}
	}

	client := stream.NewStocksClient(
		marketdata.IEX,
		stream.WithCredentials(a.keyID, a.secretKey),
	)
	if err := client.SubscribeToTrades(tradeHandler, ticker); err != nil {
		return decimal.Zero, fmt.Errorf("subscribing to %s: %w", ticker, err)
	}

	// Connect blocks until the connection is closed; the timeout on sctx
	// tears it down whether or not a tick arrived.
	go func() {
		if err := client.Connect(sctx); err != nil && sctx.Err() == nil {
			log.Printf("price stream for %s closed: %v", ticker, err)
		}
	}()

	select {
	case price := <-ticks:
		return decimal.NewFromFloat(price), nil
	case <-sctx.Done():
		return decimal.Zero, fmt.Errorf("no tick for %s within %s: %w", ticker, wait, ErrPriceUnresolved)
	}
}

// PlaceLimitOrder submits a DAY limit order.
func (a *AlpacaProvider) PlaceLimitOrder(ticker string, qty int64, side models.Side, limitPrice decimal.Decimal) (string, error) {
	q := decimal.NewFromInt(qty)
	order, err := a.tradeClient.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      ticker,
		Qty:         &q,
		Side:        alpaca.Side(side),
		Type:        alpaca.Limit,
		LimitPrice:  &limitPrice,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return "", err
	}
	return order.ID, nil
}
