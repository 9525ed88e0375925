package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/voicelink/pkg/log"
	"github.com/autopeer-io/voicelink/pkg/options"
)

// ReadinessFunc reports whether the process can serve commands.
type ReadinessFunc func() bool

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

// NewServer builds the HTTP ingress: command endpoints, probes and metrics.
func NewServer(opts *options.HttpOptions, issuer CommandIssuer, ready ReadinessFunc) *Server {
	return &Server{
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      NewRouter(issuer, ready, opts.WaitTimeout()),
			ReadTimeout:  opts.Timeout,
			WriteTimeout: opts.Timeout,
		},
		options: opts,
	}
}

// NewRouter returns the handler tree without binding a listener.
func NewRouter(issuer CommandIssuer, ready ReadinessFunc, timeout time.Duration) http.Handler {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness Probe: commands cannot be published without a broker connection.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("mqtt not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	h := &commandHandler{issuer: issuer, timeout: timeout}
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(requestIDMiddleware)
	api.HandleFunc("/singular/{endpointId}", h.singular).Methods(http.MethodPost)
	api.HandleFunc("/batched", h.batched).Methods(http.MethodPost)

	logged := handlers.CustomLoggingHandler(io.Discard, r, logAccess)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(logged)
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func logAccess(_ io.Writer, p handlers.LogFormatterParams) {
	log.Debug("HTTP request",
		"method", p.Request.Method,
		"uri", p.URL.RequestURI(),
		"status", p.StatusCode,
		"size", p.Size,
		"requestId", p.Request.Header.Get(HeaderRequestID),
	)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	log.Error(nil, "Recovered from panic in HTTP handler", "panic", v)
}
