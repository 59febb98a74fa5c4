package redundancy

import (
	"errors"
	"net"
	"time"
)

// Prober measures the round-trip time to a peer. The built-in network
// implements it with its ping RPC.
type Prober interface {
	Ping(target string) (time.Duration, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(target string) (time.Duration, error)

// Ping implements Prober.
func (f ProberFunc) Ping(target string) (time.Duration, error) {
	return f(target)
}

// TCPProber times the establishment of a TCP connection. It serves peers that
// do not run the built-in network, such as plugin transports.
type TCPProber struct {
	Timeout time.Duration
}

// Ping implements Prober.
func (p TCPProber) Ping(target string) (time.Duration, error) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", target, p.Timeout)
	if err != nil {
		return 0, err
	}
	rtt := time.Since(start)
	conn.Close()
	return rtt, nil
}

var errNoProber = errors.New("no prober configured")
