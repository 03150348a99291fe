package detector

import "errors"

// Classified fetch failures. All of them are non-fatal to a polling loop: the
// caller logs, records the failure in the session log, and retries on the next
// tick while an operator refreshes the cookie file out-of-band.
var (
	// ErrAuthExpired means the subscription cookie is no longer accepted.
	ErrAuthExpired = errors.New("auth expired: subscription cookie invalid")

	// ErrBlocked means the source answered with an anti-bot challenge.
	ErrBlocked = errors.New("blocked: captcha challenge received")

	// ErrMalformedResponse means the body passed the markers but did not
	// parse as the expected JSON shape.
	ErrMalformedResponse = errors.New("malformed response")
)
