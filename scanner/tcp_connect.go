package scanner

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// bannerSize matches the single recv the greeting read performs.
const bannerSize = 1024

// ProbeFunc performs one bounded connection attempt against host:port.
// Implementations must be safe for concurrent use.
type ProbeFunc func(ctx context.Context, host string, port int, timeout time.Duration) Outcome

// TCPProbe dials host:port over TCP and classifies the result:
//   - Open: handshake completed; Banner holds whatever the peer sent first
//   - Closed: connection actively refused (RST received)
//   - Error: timeout, unreachable network, resolution failure and the like
//
// The greeting read reuses timeout as its deadline and never changes the
// outcome: any read failure just leaves the banner empty.
func TCPProbe(ctx context.Context, host string, port int, timeout time.Duration) Outcome {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout, KeepAlive: -1}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return classifyDialError(port, err)
	}
	defer conn.Close()

	return Outcome{Port: port, Status: StatusOpen, Banner: grabBanner(conn, timeout)}
}

// grabBanner reads whatever the service volunteers right after connect.
func grabBanner(conn net.Conn, timeout time.Duration) []byte {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return []byte{}
	}

	buf := make([]byte, bannerSize)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return []byte{}
	}
	return buf[:n]
}

// classifyDialError maps a failed dial to Closed or Error.
func classifyDialError(port int, err error) Outcome {
	if errors.Is(err, context.Canceled) {
		return Outcome{Port: port, Status: StatusError, Cause: CauseCanceled}
	}

	// Resolver failures can mention "connection refused" from the DNS server.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return Outcome{Port: port, Status: StatusError, Cause: CauseTimeout}
		}
		return Outcome{Port: port, Status: StatusError, Cause: err.Error()}
	}

	if isConnectionRefused(err) {
		return Outcome{Port: port, Status: StatusClosed}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Port: port, Status: StatusError, Cause: CauseTimeout}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Port: port, Status: StatusError, Cause: CauseTimeout}
	}

	return Outcome{Port: port, Status: StatusError, Cause: err.Error()}
}

// isConnectionRefused checks if the error is a connection refused error.
// Connection refused (RST packet) indicates the port is definitively closed.
func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Windows reports WSAECONNREFUSED with a different message.
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "actively refused")
}
