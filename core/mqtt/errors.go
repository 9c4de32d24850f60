package mqtt

import "errors"

var (
	// ErrNotConnected is returned when publishing while the broker link is down
	// and the client has no reconnect in progress.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrRetriesExhausted wraps the last publish error once every attempt failed.
	ErrRetriesExhausted = errors.New("mqtt: publish retries exhausted")
)
