package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the admin HTTP endpoint: /metrics, /healthz and, when a catalog
// is configured, /v1/search/{query}.
type Server struct {
	srv *http.Server
	lis net.Listener
}

// NewServer listens on port. healthy may be nil; search may be nil.
func NewServer(port int, healthy func() bool, search http.Handler) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{Handler: Mux(healthy, search), ReadHeaderTimeout: 5 * time.Second},
		lis: lis,
	}, nil
}

// Mux builds the admin routes.
func Mux(healthy func() bool, search http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if healthy != nil && !healthy() {
			http.Error(w, "not serving", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	if search != nil {
		mux.Handle("/v1/search/{query}", search)
	}
	return mux
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error {
	if err := s.srv.Serve(s.lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
