// Package control serves an operator HTTP API for the module lifecycle.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/small-frappuccino/zealox/pkg/log"
	"github.com/small-frappuccino/zealox/pkg/module"
)

// Modules is the module manager surface exposed over HTTP.
type Modules interface {
	List() []module.Info
	Available() []string
	LoadingErrors() []string
	LoadModule(ctx context.Context, name string) error
	UnloadModule(ctx context.Context, name string) error
	ReloadModule(ctx context.Context, name string) error
}

// Status is the body of GET /v1/status.
type Status struct {
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`
	Modules       int       `json:"modules"`
	Guilds        int       `json:"guilds"`
	PendingTasks  int       `json:"pending_tasks"`
	LoadingErrors []string  `json:"loading_errors,omitempty"`
}

// StatusFunc reports the current bot status.
type StatusFunc func() Status

// Response is the envelope of every mutating endpoint.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Server exposes operational controls for a running bot.
type Server struct {
	addr       string
	modules    Modules
	status     StatusFunc
	httpServer *http.Server
	listener   net.Listener
}

// NewServer returns nil if addr is empty.
func NewServer(addr string, modules Modules, status StatusFunc) *Server {
	addr = strings.TrimSpace(addr)
	if addr == "" || modules == nil {
		return nil
	}

	s := &Server{
		addr:    addr,
		modules: modules,
		status:  status,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed API. Routes live on the root router so a
// method mismatch answers 405 instead of 404.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/modules", s.handleModules).Methods(http.MethodGet)
	r.HandleFunc("/v1/modules/{name}/{action:load|unload|reload}", s.handleLifecycle).Methods(http.MethodPost)
	r.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
	})
	return r
}

// Start opens the control server listening socket.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("bind control server: %w", err)
	}
	s.listener = ln

	log.ApplicationLogger().Info("Control server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ApplicationLogger().Error("Control server stopped unexpectedly", "err", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts down the control server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown control server: %w", err)
	}

	log.ApplicationLogger().Info("Control server stopped", "addr", s.addr)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{OK: true})
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded":    s.modules.List(),
		"available": s.modules.Available(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st Status
	if s.status != nil {
		st = s.status()
	}
	st.Modules = len(s.modules.List())
	st.LoadingErrors = s.modules.LoadingErrors()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, action := vars["name"], vars["action"]

	var err error
	switch action {
	case "load":
		err = s.modules.LoadModule(r.Context(), name)
	case "unload":
		err = s.modules.UnloadModule(r.Context(), name)
	case "reload":
		err = s.modules.ReloadModule(r.Context(), name)
	}
	if err != nil {
		log.ApplicationLogger().Warn("Control lifecycle request failed", "action", action, "module", name, "err", err)
		writeJSON(w, statusFor(err), Response{Error: err.Error()})
		return
	}
	log.ApplicationLogger().Info("Control lifecycle request completed", "action", action, "module", name)
	writeJSON(w, http.StatusOK, Response{OK: true})
}

// statusFor maps lifecycle errors to HTTP status codes. A failed command
// sync still applied the change, so it is reported as a server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, module.ErrModuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, module.ErrNotLoaded),
		errors.Is(err, module.ErrRequiredModule),
		errors.Is(err, module.ErrHasDependents),
		errors.Is(err, module.ErrDuplicateCog),
		errors.Is(err, module.ErrDuplicateCommand),
		errors.Is(err, module.ErrDependencyCycle):
		return http.StatusConflict
	case errors.Is(err, module.ErrRequirementsNotMet):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.ApplicationLogger().Error("Failed to encode control response", "err", err)
	}
}
