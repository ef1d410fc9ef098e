package apihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"galleryrip/internal/domain"
	"galleryrip/internal/usecase"
)

type AddPostUseCase interface {
	Execute(ctx context.Context, input usecase.AddPostInput) (domain.PostRecord, error)
}

type ListPostsUseCase interface {
	Execute(ctx context.Context) ([]domain.PostRecord, error)
}

type GetPostImagesUseCase interface {
	Execute(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error)
}

type DeletePostsUseCase interface {
	Execute(ctx context.Context, ids []string) error
}

type ClearFinishedUseCase interface {
	Execute(ctx context.Context) ([]string, error)
}

// DownloadController is the control surface of the download engine.
type DownloadController interface {
	Stop(ctx context.Context, postRecordIDs []string)
	Restart(ctx context.Context, postRecordIDs []string)
	Move(postRecordID string, position domain.MovePosition)
	QueueState() domain.QueueState
}

type SettingsController interface {
	Settings() domain.Settings
	Update(settings domain.Settings) error
}

// EventSource is the broadcast side of the in-process event bus; the server
// relays its events to connected WebSocket clients.
type EventSource interface {
	Subscribe(buffer int) (<-chan any, func())
}

type Server struct {
	addPost        AddPostUseCase
	listPosts      ListPostsUseCase
	getImages      GetPostImagesUseCase
	deletePosts    DeletePostsUseCase
	clearFinished  ClearFinishedUseCase
	control        DownloadController
	settings       SettingsController
	events         EventSource
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
	unsubscribe    func()
}

type ServerOption func(*Server)

func WithListPosts(uc ListPostsUseCase) ServerOption {
	return func(s *Server) {
		s.listPosts = uc
	}
}

func WithGetPostImages(uc GetPostImagesUseCase) ServerOption {
	return func(s *Server) {
		s.getImages = uc
	}
}

func WithDeletePosts(uc DeletePostsUseCase) ServerOption {
	return func(s *Server) {
		s.deletePosts = uc
	}
}

func WithClearFinished(uc ClearFinishedUseCase) ServerOption {
	return func(s *Server) {
		s.clearFinished = uc
	}
}

func WithDownloadController(ctrl DownloadController) ServerOption {
	return func(s *Server) {
		s.control = ctrl
	}
}

func WithSettings(ctrl SettingsController) ServerOption {
	return func(s *Server) {
		s.settings = ctrl
	}
}

func WithEvents(src EventSource) ServerOption {
	return func(s *Server) {
		s.events = src
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(addPost AddPostUseCase, opts ...ServerOption) *Server {
	s := &Server{addPost: addPost}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()
	if s.events != nil {
		events, cancel := s.events.Subscribe(64)
		s.unsubscribe = cancel
		go s.relayEvents(events)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/posts", s.handlePosts)
	mux.HandleFunc("/api/posts/", s.handlePostsSub)
	mux.HandleFunc("/api/queue", s.handleQueue)
	mux.HandleFunc("/api/queue/move", s.handleQueueMove)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "galleryrip",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && p != "/ws"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// relayEvents translates bus events into typed WebSocket messages.
func (s *Server) relayEvents(events <-chan any) {
	for event := range events {
		switch e := event.(type) {
		case domain.PostCreatedEvent:
			s.wsHub.Broadcast("post_created", e.Post)
		case domain.PostUpdatedEvent:
			s.wsHub.Broadcast("post_updated", e.Post)
		case domain.PostDeletedEvent:
			s.wsHub.Broadcast("posts_deleted", e.PostRecordIDs)
		case domain.ImageUpdatedEvent:
			s.wsHub.Broadcast("image_updated", e.Image)
		case domain.QueueStateEvent:
			s.wsHub.Broadcast("queue_state", e.State)
		case domain.ErrorCountEvent:
			s.wsHub.Broadcast("error_count", e.Count)
		case domain.StoppedEvent:
			s.wsHub.Broadcast("stopped", e.PostRecordIDs)
		}
	}
}

// Close disconnects WebSocket clients and detaches from the event bus.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
