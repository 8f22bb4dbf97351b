package base

import (
	"errors"
	"net"
	"time"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptBackoff returns the delay before the next Accept after a failed one
func acceptBackoff(last time.Duration) time.Duration {
	if last == 0 {
		return minAcceptDelay
	}
	return min(last*2, maxAcceptDelay)
}

// isClosedErr reports whether err was caused by using a closed connection or listener
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
