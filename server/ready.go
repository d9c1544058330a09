package server

import (
	"context"
	"net"
	"time"
)

// WaitReady dials addr every interval until a TCP connection succeeds or ctx ends.
func WaitReady(ctx context.Context, addr string, interval time.Duration) error {
	dialer := &net.Dialer{Timeout: interval}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
