package ledger_service

import (
	"errors"
	"net"
	"syscall"
)

// transientTransport reports whether err looks like a transport blip that
// is worth a bounded retry. Business rejections (insufficient credit,
// not found) never pass this check.
func transientTransport(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return false
}
