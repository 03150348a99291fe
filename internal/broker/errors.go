package broker

import "errors"

var (
	// ErrPriceUnresolved means neither the feed nor a live stream produced a
	// usable price; the caller must skip the instrument.
	ErrPriceUnresolved = errors.New("price unresolved")

	// ErrOrderRejected marks a broker-side submission failure. Recovered per
	// order: it never aborts the rest of a batch.
	ErrOrderRejected = errors.New("order rejected")

	// ErrConnectionUnavailable means the broker handle is absent (never
	// connected, or disconnected).
	ErrConnectionUnavailable = errors.New("broker connection unavailable")
)
