// Package web provides the HTTP status page and configuration portal for the
// lamp-control daemon.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/stscde/lamp-control/internal/config"
	"github.com/stscde/lamp-control/internal/status"
)

// Server serves the status page and the configuration portal.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	store      *config.Store
}

// New creates a Server that reads state from the given tracker and edits
// parameters through the given store.
func New(addr string, tracker *status.Tracker, store *config.Store) *Server {
	s := &Server{tracker: tracker, store: store}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/config", s.handleConfig)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Handler returns the server's HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderIndex(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderConfig(w, s.store.Params(), "")
	case http.MethodPost:
		s.handleConfigSave(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}

	params, err := parseParams(r.PostForm.Get("switch_delay_seconds"), r.PostForm.Get("dark_level"))
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		renderConfig(w, s.store.Params(), err.Error())
		return
	}

	if err := s.store.Save(params); err != nil {
		http.Error(w, "save failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderSaved(w, params)
}

func parseParams(delay, darkLevel string) (config.Params, error) {
	d, err := strconv.Atoi(delay)
	if err != nil {
		return config.Params{}, fmt.Errorf("switch_delay_seconds: not a number")
	}
	l, err := strconv.Atoi(darkLevel)
	if err != nil {
		return config.Params{}, fmt.Errorf("dark_level: not a number")
	}
	return config.Params{SwitchDelaySeconds: d, DarkLevel: l}, nil
}
