package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lexcodex/codebase/framework"
)

// Service is what the status API reads from and triggers.
type Service interface {
	Projects() []framework.Project
	Summary() framework.Summary
	ScanAsync(ctx context.Context) (string, error)
	Running() bool
	Uptime() time.Duration
}

// APIServer exposes project statistics and a scan trigger over HTTP.
type APIServer struct {
	Service Service
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	Logger  *slog.Logger

	// baseCtx outlives requests so triggered scans are not cancelled when
	// the response is written.
	baseCtx context.Context
}

// InfoView is the published shape of a ProjectInfo: error text stays local.
type InfoView struct {
	Volume           framework.CodeVolume            `json:"volume"`
	ExtensionsVolume map[string]framework.CodeVolume `json:"extensions_volume"`
	ErrorCount       int                             `json:"error_count"`
}

// SummaryResponse is returned by /api/summary.
type SummaryResponse struct {
	All     InfoView `json:"all"`
	Public  InfoView `json:"public"`
	Private InfoView `json:"private"`
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Running  bool   `json:"running"`
	Projects int    `json:"projects"`
	Uptime   string `json:"uptime"`
}

// ScanResponse is returned by /api/scan.
type ScanResponse struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	server := s.newHTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger().Info("status API listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler returns the API routes.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/projects/", s.handleProject)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/scan", s.handleScan)
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics)
	}
	return mux
}

func (s *APIServer) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *APIServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "OK (uptime: %s)", s.Service.Uptime().Round(time.Second))
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusResponse{
		Running:  s.Service.Running(),
		Projects: len(s.Service.Projects()),
		Uptime:   s.Service.Uptime().Round(time.Second).String(),
	})
}

func (s *APIServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, framework.Entities(s.Service.Projects()))
}

func (s *APIServer) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	title := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	for _, p := range s.Service.Projects() {
		if p.Title == title {
			writeJSON(w, p.Entity())
			return
		}
	}
	http.Error(w, framework.ErrProjectNotFound.Error(), http.StatusNotFound)
}

func (s *APIServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary := s.Service.Summary()
	writeJSON(w, SummaryResponse{
		All:     view(summary.All),
		Public:  view(summary.Public),
		Private: view(summary.Private),
	})
}

func (s *APIServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	runID, err := s.Service.ScanAsync(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, framework.ErrRunInProgress) {
			status = http.StatusConflict
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ScanResponse{Error: err.Error()})
		return
	}
	s.logger().Info("scan triggered over HTTP", "run", runID, "remote", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ScanResponse{RunID: runID})
}

func (s *APIServer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func view(info framework.ProjectInfo) InfoView {
	ext := info.ExtensionsVolume
	if ext == nil {
		ext = map[string]framework.CodeVolume{}
	}
	return InfoView{Volume: info.Volume, ExtensionsVolume: ext, ErrorCount: len(info.Errors)}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
