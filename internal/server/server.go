package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tasktrac/apiserver/config"
	"github.com/tasktrac/apiserver/internal/db"
	"github.com/tasktrac/apiserver/internal/events"
	"github.com/tasktrac/apiserver/internal/handlers"
	"github.com/tasktrac/apiserver/internal/services"
	"github.com/tasktrac/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and owned backend handles.
// Connections are opened here and closed on Shutdown; nothing holds a
// module-level handle.
type Server struct {
	httpServer  *http.Server
	router      *chi.Mux
	db          *sql.DB
	mongoClient *mongo.Client
	publisher   *events.Publisher
}

// New constructs a Server: opens the configured storage backend, wires
// stores, services, and handlers, and sets up the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	srv := &Server{}

	var taskStore store.TaskStore
	var userStore store.UserStore
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		srv.db = dbConn
		taskStore = store.NewPGTaskStore(dbConn)
		userStore = store.NewPGUserStore(dbConn)
	case config.BackendMongo:
		client, database, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		srv.mongoClient = client
		taskStore = store.NewMongoTaskStore(database)
		userStore = store.NewMongoUserStore(database)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	publisher, err := newPublisher(ctx, cfg.Events)
	if err != nil {
		_ = srv.closeBackends()
		return nil, err
	}
	srv.publisher = publisher

	taskService := services.NewTaskService(taskStore, publisher)
	userService := services.NewUserService(userStore)

	authMiddleware := handlers.RequireAuth(cfg.Auth)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/taskTrac", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, cfg.Auth)
		})
		r.Route("/task", func(r chi.Router) {
			handlers.TaskRouter(r, taskService, authMiddleware)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv.router = router
	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully and closes backend handles.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.closeBackends(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Server) closeBackends() error {
	var err error
	if s.publisher != nil {
		err = s.publisher.Close()
	}
	if s.db != nil {
		if closeErr := s.db.Close(); err == nil {
			err = closeErr
		}
	}
	if s.mongoClient != nil {
		if closeErr := s.mongoClient.Disconnect(context.Background()); err == nil {
			err = closeErr
		}
	}
	return err
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (*events.Publisher, error) {
	switch cfg.Backend {
	case config.EventsNone, "":
		return events.NewPublisher(events.NoopBackend{}), nil
	case config.EventsRabbitMQ:
		backend, err := events.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend), nil
	case config.EventsPubSub:
		backend, err := events.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
