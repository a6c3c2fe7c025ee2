package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"snackrun/internal/logging"
)

const shutdownTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	// Browser clients are served from anywhere during development.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server exposes the Hub over a websocket endpoint at /ws. Other routes can be
// mounted on the same router with Handle.
type Server struct {
	hub       *Hub
	router    chi.Router
	log       zerolog.Logger
	startOnce sync.Once
}

func NewServer(handler EventHandler) *Server {
	s := &Server{
		hub:    NewHub(handler),
		router: chi.NewRouter(),
		log:    logging.Component("server"),
	}
	s.router.Use(chimw.RealIP)
	s.router.Use(chimw.Recoverer)
	s.router.Get("/ws", s.wsHandler)
	return s
}

// Handle mounts an extra HTTP handler, e.g. /health.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// Handler returns the router. Start must be called before it serves websockets.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the Hub goroutine. Safe to call more than once.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		go s.hub.Run()
	})
}

// Stop halts the Hub.
func (s *Server) Stop() {
	s.hub.Stop()
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, s.hub)
	if !s.hub.registerClient(client) {
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop()
}

// Listen starts the Hub and serves HTTP on address until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, address string) error {
	s.Start()
	defer s.Stop()

	srv := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("address", address).Msg("relay listening on /ws")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
