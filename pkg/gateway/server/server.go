package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/evermem/linekeeper/pkg/core/call"
	"github.com/evermem/linekeeper/pkg/gateway/config"
	"github.com/evermem/linekeeper/pkg/gateway/handlers"
	"github.com/evermem/linekeeper/pkg/gateway/lifecycle"
	"github.com/evermem/linekeeper/pkg/gateway/mw"
	"github.com/evermem/linekeeper/pkg/memory"
	"github.com/evermem/linekeeper/pkg/policy"
)

// Deps are the collaborators the gateway orchestrates calls with. Zero-value
// fields get defaults: an in-process store per the configured driver, the
// built-in disclosure policy, an empty profile directory, and no memory
// search.
type Deps struct {
	Logger   *slog.Logger
	Store    memory.ConversationStore
	Profiles memory.ProfileDirectory
	Search   memory.Searcher
	Policy   policy.Engine
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	lc      *lifecycle.Lifecycle
	manager *call.Manager
	handler *call.Handler

	closeStore func() error
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := deps.Store
	closeStore := func() error { return nil }
	if store == nil {
		switch cfg.StoreDriver {
		case config.StoreMemory:
			store = memory.NewMemStore()
		case config.StoreSQLite:
			s, err := memory.NewSQLiteStore(cfg.StoreDSN)
			if err != nil {
				return nil, fmt.Errorf("open sqlite store: %w", err)
			}
			store = s
			closeStore = s.Close
		case config.StorePostgres:
			s, err := memory.NewPostgresStore(context.Background(), cfg.StoreDSN)
			if err != nil {
				return nil, fmt.Errorf("open postgres store: %w", err)
			}
			store = s
			closeStore = func() error { s.Close(); return nil }
		default:
			return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
		}
	}

	engine := deps.Policy
	if engine == nil {
		source := policy.DefaultPolicy
		if cfg.PolicyFile != "" {
			data, err := os.ReadFile(cfg.PolicyFile)
			if err != nil {
				_ = closeStore()
				return nil, fmt.Errorf("read policy file: %w", err)
			}
			source = string(data)
		}
		e, err := policy.NewRegoEngine(context.Background(), source)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("compile policy: %w", err)
		}
		engine = e
	}

	profiles := deps.Profiles
	if profiles == nil {
		profiles = memory.StaticDirectory{}
	}

	manager := call.NewManager(call.Deps{
		Config:   cfg.CallConfig(),
		Logger:   logger,
		Profiles: profiles,
		Search:   deps.Search,
		Policy:   engine,
		Store:    store,
	})

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		lc:         &lifecycle.Lifecycle{},
		manager:    manager,
		handler:    call.NewHandler(manager),
		closeStore: closeStore,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lc})

	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Handler:   s.handler,
		Lifecycle: s.lc,
	})
	s.mux.Handle("/v1/calls/{id}", handlers.CallsHandler{Handler: s.handler})
	s.mux.Handle("/v1/status", handlers.StatusHandler{Handler: s.handler})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// CallHandler exposes the call orchestration entrypoint for transports
// mounted outside the HTTP mux.
func (s *Server) CallHandler() *call.Handler { return s.handler }

func (s *Server) SetDraining() {
	s.lc.SetDraining(true)
}

// WarnActiveCalls logs the calls still in flight when draining starts.
func (s *Server) WarnActiveCalls() {
	if n := s.manager.ActiveCalls(); n > 0 {
		s.logger.Warn("draining with active calls", "active_calls", n)
	}
}

// WaitCalls blocks until every active call has finished or ctx ends. It
// reports whether all calls finished.
func (s *Server) WaitCalls(ctx context.Context) bool {
	return s.manager.Wait(ctx)
}

// CancelCalls cancels every active call and returns how many were cancelled.
func (s *Server) CancelCalls() int {
	return s.manager.CancelAll()
}

func (s *Server) Close() error {
	return s.closeStore()
}
