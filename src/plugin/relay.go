package plugin

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/sirupsen/logrus"
)

// Relay is a WAMP router through which nodes using the wamp plugin call each
// other.
type Relay struct {
	address    string
	router     router.Router
	httpServer *http.Server
	listener   net.Listener
	logger     *logrus.Entry
}

// NewRelay creates a Relay for the given realm. TLS is enabled when certFile
// is not empty.
func NewRelay(address, realm, certFile, keyFile string, logger *logrus.Entry) (*Relay, error) {
	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}

	nxr, err := router.NewRouter(routerConfig, logger)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Handler: router.NewWebsocketServer(nxr),
		Addr:    address,
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			nxr.Close()
			return nil, fmt.Errorf("error loading X509 key pair: %s", err)
		}
		httpServer.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	return &Relay{
		address:    address,
		router:     nxr,
		httpServer: httpServer,
		logger:     logger,
	}, nil
}

// Listen binds the relay address. Run calls it when needed.
func (r *Relay) Listen() error {
	if r.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", r.address)
	if err != nil {
		return err
	}
	r.listener = ln
	return nil
}

// Run serves the relay until Shutdown.
func (r *Relay) Run() error {
	if err := r.Listen(); err != nil {
		return err
	}

	var err error
	if r.httpServer.TLSConfig != nil {
		err = r.httpServer.ServeTLS(r.listener, "", "")
	} else {
		err = r.httpServer.Serve(r.listener)
	}
	if err != nil && err != http.ErrServerClosed {
		r.logger.WithError(err).Error("Run")
		return err
	}
	return nil
}

// Shutdown stops the websocket server and the router.
func (r *Relay) Shutdown() {
	defer r.router.Close()

	if err := r.httpServer.Shutdown(context.Background()); err != nil {
		r.logger.WithError(err).Error("Shutting down http server")
	}
}

// Addr returns the address the relay listens on.
func (r *Relay) Addr() string {
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.address
}
