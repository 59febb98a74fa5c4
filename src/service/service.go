package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/dcfnet/dcf/src/common"
	"github.com/dcfnet/dcf/src/node"
	"github.com/dcfnet/dcf/src/redundancy"
	"github.com/sirupsen/logrus"
)

// Service exposes the state of a node over HTTP.
type Service struct {
	bindAddress string
	node        *node.Node
	routes      *redundancy.Redundancy
	mux         *http.ServeMux
	server      *http.Server
	listener    net.Listener
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, routes *redundancy.Redundancy, logger *logrus.Entry) *Service {
	service := &Service{
		bindAddress: bindAddress,
		node:        n,
		routes:      routes,
		mux:         http.NewServeMux(),
		logger:      logger.WithField("component", "service"),
	}

	service.registerHandlers()

	return service
}

// registerHandlers registers the API handlers with the service's own mux, so
// that several nodes can run in one process.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering DCF API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/routes", s.makeHandler(s.GetRoutes))
	s.mux.HandleFunc("/groups", s.makeHandler(s.GetGroups))
	s.mux.HandleFunc("/health", s.makeHandler(s.HealthCheck))
	s.mux.HandleFunc("/fail", s.makeHandler(s.SimulateFailure))
	s.mux.HandleFunc("/heal", s.makeHandler(s.Heal))
	s.mux.HandleFunc("/metrics", s.GetMetrics)
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve listens on the bind address and serves the API. This is a blocking
// call.
func (s *Service) Serve() error {
	ln, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		s.logger.WithError(err).Error("Service failed")
		return err
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.mux}

	s.logger.WithField("bind_address", ln.Addr().String()).Debug("Serving DCF API")

	err = s.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
		return err
	}
	return nil
}

// Shutdown stops a service started with Serve.
func (s *Service) Shutdown() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.routes.Peers())
}

// GetRoutes ...
func (s *Service) GetRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.routes.Routes())
}

// GetGroups probes every peer and returns the local and remote groups.
func (s *Service) GetGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.routes.GroupPeers())
}

// HealthCheck probes the peer named by the peer query parameter.
func (s *Service) HealthCheck(w http.ResponseWriter, r *http.Request) {
	peer := r.URL.Query().Get("peer")
	if peer == "" {
		http.Error(w, "missing peer parameter", http.StatusBadRequest)
		return
	}

	rtt, err := s.routes.HealthCheck(peer)
	res := map[string]interface{}{
		"peer":    peer,
		"healthy": err == nil,
		"rtt_ms":  float64(rtt) / float64(time.Millisecond),
	}
	if err != nil {
		res["error"] = err.Error()
	}
	writeJSON(w, res)
}

// SimulateFailure marks a peer as failed. POST only.
func (s *Service) SimulateFailure(w http.ResponseWriter, r *http.Request) {
	s.peerAction(w, r, s.routes.SimulateFailure)
}

// Heal clears a simulated failure. POST only.
func (s *Service) Heal(w http.ResponseWriter, r *http.Request) {
	s.peerAction(w, r, s.routes.Heal)
}

func (s *Service) peerAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	peer := r.URL.Query().Get("peer")
	if peer == "" {
		http.Error(w, "missing peer parameter", http.StatusBadRequest)
		return
	}

	if err := action(peer); err != nil {
		status := http.StatusInternalServerError
		if common.IsDCFErr(err, common.NoRoute) {
			status = http.StatusNotFound
		}
		s.logger.WithError(err).WithField("peer", peer).Debug("Peer action failed")
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, s.routes.Routes())
}

// GetMetrics writes the node counters in the Prometheus text format.
func (s *Service) GetMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.node.Metrics().WritePrometheus(w)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}
