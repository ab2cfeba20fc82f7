package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"monoamp/internal/amp"
	"monoamp/internal/entity"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DataSource provides the latest amplifier snapshot
type DataSource interface {
	Data() *amp.Snapshot
}

// Server provides HTTP API endpoints for the amplifier gateway
type Server struct {
	data     DataSource
	entities []entity.Entity
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server

	players map[int]*entity.ZonePlayer
	pandora map[int]*entity.PandoraPlayer
}

// NewServer creates a new API server
func NewServer(data DataSource, entities []entity.Entity, logger *zap.Logger, port int) *Server {
	s := &Server{
		data:     data,
		entities: entities,
		logger:   logger.Named("api"),
		players:  make(map[int]*entity.ZonePlayer),
		pandora:  make(map[int]*entity.PandoraPlayer),
	}

	for _, e := range entities {
		switch ent := e.(type) {
		case *entity.ZonePlayer:
			s.players[ent.ZoneID()] = ent
		case *entity.PandoraPlayer:
			s.pandora[ent.Index()] = ent
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleSitemap).Methods("GET")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/state", s.handleGetState).Methods("GET")
	apiRouter.HandleFunc("/entities", s.handleGetEntities).Methods("GET")
	apiRouter.HandleFunc("/zones/{zone:[0-9]+}/set_zone", s.handleSetZone).Methods("POST")
	apiRouter.HandleFunc("/pandora/{index:[0-9]+}/{command}", s.handlePandoraCommand).Methods("POST")
	s.router = router

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// EntityResponse summarises one entity
type EntityResponse struct {
	UniqueID  string      `json:"unique_id"`
	Name      string      `json:"name"`
	Kind      entity.Kind `json:"kind"`
	Available bool        `json:"available"`
	State     string      `json:"state,omitempty"`
}

// handleGetState returns the current snapshot as JSON
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	snapshot := s.data.Data()
	if snapshot == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}

	s.writeJSON(w, http.StatusOK, snapshot)
	s.logger.Debug("State request served", zap.String("remote_addr", r.RemoteAddr))
}

// handleGetEntities lists every entity with its availability and state
func (s *Server) handleGetEntities(w http.ResponseWriter, r *http.Request) {
	response := make([]EntityResponse, 0, len(s.entities))
	for _, e := range s.entities {
		resp := EntityResponse{
			UniqueID:  e.UniqueID(),
			Name:      e.Name(),
			Kind:      e.Kind(),
			Available: e.Available(),
		}
		switch ent := e.(type) {
		case *entity.ZonePlayer:
			resp.State = ent.State()
		case *entity.PandoraPlayer:
			resp.State = ent.State()
		case *entity.ZoneValue:
			resp.State = strconv.Itoa(ent.Value())
		case *entity.ZoneSwitch:
			resp.State = entity.StateOff
			if ent.IsOn() {
				resp.State = entity.StateOn
			}
		}
		response = append(response, resp)
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSetZone applies the set_zone action. Device failures are logged
// and the request is still accepted.
func (s *Server) handleSetZone(w http.ResponseWriter, r *http.Request) {
	zoneID, _ := strconv.Atoi(mux.Vars(r)["zone"])
	player, ok := s.players[zoneID]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown zone %d", zoneID))
		return
	}

	var settings entity.ZoneSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := player.SetZone(r.Context(), settings); err != nil {
		s.logger.Warn("set_zone failed", zap.Int("zone", zoneID), zap.Error(err))
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type selectRequest struct {
	Source string `json:"source"`
}

// handlePandoraCommand runs play, pause, next or select on a Pandora player
func (s *Server) handlePandoraCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, _ := strconv.Atoi(vars["index"])
	player, ok := s.pandora[index]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown pandora player %d", index))
		return
	}

	var err error
	switch strings.ToLower(vars["command"]) {
	case "play":
		err = player.Play(r.Context())
	case "pause":
		err = player.Pause(r.Context())
	case "next":
		err = player.NextTrack(r.Context())
	case "select":
		var req selectRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil || req.Source == "" {
			s.writeError(w, http.StatusBadRequest, "select requires a source")
			return
		}
		err = player.SelectSource(r.Context(), req.Source)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown command %q", vars["command"]))
		return
	}

	if err != nil {
		s.logger.Warn("Pandora command failed",
			zap.Int("player", index),
			zap.String("command", vars["command"]),
			zap.Error(err))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.data.Data() == nil {
		status = "starting"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
	{Path: "/health", Method: "GET", Description: "Health check endpoint"},
	{Path: "/api/state", Method: "GET", Description: "Latest amplifier snapshot (zones, sources)"},
	{Path: "/api/entities", Method: "GET", Description: "All entities with availability and state"},
	{Path: "/api/zones/{zone}/set_zone", Method: "POST", Description: "Apply treble/bass/balance/volume/mute values to a zone"},
	{Path: "/api/pandora/{index}/{command}", Method: "POST", Description: "play, pause, next or select {\"source\": ...} on a Pandora player"},
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>MonoAmp API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>MonoAmp API</h1>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "MonoAmp API\n")
		fmt.Fprintf(w, "===========\n\n")
		fmt.Fprintf(w, "Available endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-6s %-32s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExample:\n\n")
		fmt.Fprintf(w, "  curl -X POST -d '{\"volume_value\": 20}' http://localhost:8081/api/zones/12/set_zone\n")
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
