package pricing

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/kilianp07/evbill/core/history"
	"github.com/kilianp07/evbill/core/prediction"
	"github.com/kilianp07/evbill/infra/logger"
)

// Server serves the web form and the JSON API.
type Server struct {
	addr    string
	handler http.Handler
	log     logger.Logger
	srv     *http.Server
	ready   chan struct{}
}

// NewServer wires every route. A nil store serves an empty history.
func NewServer(addr string, engine prediction.Engine, info ModelInfo, store history.Store) *Server {
	if store == nil {
		store = history.NopStore{}
	}
	return &Server{
		addr:    addr,
		handler: Routes(engine, info, store),
		log:     logger.New("web"),
		ready:   make(chan struct{}),
	}
}

// Routes returns the mux shared by the server and tests.
func Routes(engine prediction.Engine, info ModelInfo, store history.Store) http.Handler {
	mux := http.NewServeMux()
	form := NewFormHandler()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		form.ServeHTTP(w, r)
	})
	mux.Handle("/predict", NewPredictHandler(engine))
	mux.Handle("/api/v1/predict", NewAPIPredictHandler(engine))
	mux.Handle("/api/v1/model", NewModelHandler(info))
	mux.Handle("/api/v1/history", NewHistoryHandler(store))
	mux.Handle("/healthz", NewHealthHandler())
	return mux
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() string {
	<-s.ready
	return s.addr
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		close(s.ready)
		return err
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	close(s.ready)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
		cancel()
	}()
	s.log.Infof("web front-end listening on %s", s.addr)
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
