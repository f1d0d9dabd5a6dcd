// Package metrics serves the indexer's Prometheus counters and a liveness
// probe on a single HTTP port, adapted from the teacher's shared/prometheus
// service. It intentionally exposes nothing beyond /metrics and /healthz:
// the downstream dataset query API is out of scope.
package metrics

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "metrics")

// StatusChecker reports a component's health. A nil return means healthy.
type StatusChecker func() error

// Service serves /metrics (the Prometheus default registry) and /healthz
// (the aggregate of every registered StatusChecker) on a single address.
type Service struct {
	server  *http.Server
	checks  map[string]StatusChecker
	failure error
}

// New builds a metrics service listening on addr (e.g. ":8080"). Checks can
// be registered afterwards with Register before Start is called.
func New(addr string) *Service {
	s := &Service{checks: make(map[string]StatusChecker)}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthzHandler)
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Register adds a named health check that /healthz will report on.
func (s *Service) Register(name string, check StatusChecker) {
	s.checks[name] = check
}

func (s *Service) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	hasError := false
	var buf bytes.Buffer
	for name, check := range s.checks {
		status := "OK"
		if err := check(); err != nil {
			hasError = true
			status = "ERROR " + err.Error()
		}
		fmt.Fprintf(&buf, "%s: %s\n", name, status)
	}
	if hasError {
		w.WriteHeader(http.StatusInternalServerError)
		log.WithField("statuses", buf.String()).Warn("indexer is unhealthy")
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.WithError(err).Error("could not write healthz body")
	}
}

// Start begins serving in the background. It refuses to bind a port that is
// already occupied rather than failing the whole process.
func (s *Service) Start() {
	go func() {
		addrParts := strings.Split(s.server.Addr, ":")
		port := addrParts[len(addrParts)-1]
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%s", port), time.Second)
		if err == nil {
			_ = conn.Close()
			log.WithField("address", s.server.Addr).Warn("port already in use, metrics service not started")
			return
		}
		log.WithField("address", s.server.Addr).Debug("starting metrics service")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.failure = errors.Wrap(err, "metrics server exited")
			log.WithError(err).Error("metrics service stopped")
		}
	}()
}

// Stop gracefully shuts the HTTP server down.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status returns the last fatal error encountered while serving, if any.
func (s *Service) Status() error {
	return s.failure
}
