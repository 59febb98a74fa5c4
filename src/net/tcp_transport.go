package net

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// tcpStream is a StreamLayer over plain TCP.
type tcpStream struct {
	net.Listener
	advertise string
}

func (t *tcpStream) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

func (t *tcpStream) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.Addr().String()
}

// NewTCPTransport binds bindAddr and returns a NetworkTransport on it. Port 0
// binds an ephemeral port. advertise, when set, is the address reported to
// other nodes instead of the bound one and must resolve.
func NewTCPTransport(bindAddr, advertise string, maxPool int, timeout time.Duration, logger *logrus.Entry) (*NetworkTransport, error) {
	if advertise != "" {
		if _, err := net.ResolveTCPAddr("tcp", advertise); err != nil {
			return nil, err
		}
	}

	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	stream := &tcpStream{
		Listener:  list,
		advertise: advertise,
	}

	return NewNetworkTransport(stream, maxPool, timeout, logger), nil
}
