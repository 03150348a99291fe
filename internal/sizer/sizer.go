// Package sizer turns detected rebalance events into sized orders. The
// allocation policy is an equal split of the side's capital across its
// events. Deliberately simple; a weight-aware allocator can replace it
// without touching detection or submission.
package sizer

import (
	"github.com/shopspring/decimal"

	"rebaltrader/internal/models"
)

// SizeEvents assigns each event its target market value: the side's capital
// divided evenly across the side's event count. A side with zero events gets
// no allocation, never a division by zero.
func SizeEvents(events []models.RebalanceEvent, buyCapital, sellCapital decimal.Decimal) {
	buys, sells := models.CountSides(events)

	buyValue := decimal.Zero
	if buys > 0 {
		buyValue = buyCapital.Div(decimal.NewFromInt(int64(buys)))
	}
	sellValue := decimal.Zero
	if sells > 0 {
		sellValue = sellCapital.Div(decimal.NewFromInt(int64(sells)))
	}

	for i := range events {
		switch events[i].Side {
		case models.SideBuy:
			events[i].MarketValue = buyValue
		case models.SideSell:
			events[i].MarketValue = sellValue
		}
	}
}

// BuildOrders maps sized events 1:1 into orders. A price string that does not
// parse is treated as absent; the gateway will resolve the price live.
// Zero-valued events still become orders here and are skipped at submission,
// where the share count rounds to zero.
func BuildOrders(events []models.RebalanceEvent) []models.Order {
	orders := make([]models.Order, 0, len(events))
	for _, ev := range events {
		var known *decimal.Decimal
		if ev.KnownPrice != "" {
			if p, err := decimal.NewFromString(ev.KnownPrice); err == nil {
				known = &p
			}
		}
		orders = append(orders, models.Order{
			Side:        ev.Side,
			Ticker:      ev.Ticker,
			CompanyName: ev.CompanyName,
			MarketValue: ev.MarketValue,
			KnownPrice:  known,
		})
	}
	return orders
}
