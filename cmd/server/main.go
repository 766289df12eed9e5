package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/captionist/captionist/internal/config"
	"github.com/captionist/captionist/internal/editor"
	"github.com/captionist/captionist/internal/events"
	"github.com/captionist/captionist/internal/export"
	mw "github.com/captionist/captionist/internal/middleware"
	"github.com/captionist/captionist/internal/render"
	"github.com/captionist/captionist/internal/search"
	"github.com/captionist/captionist/internal/unsplash"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// server holds the long-lived parts that run and shutdown need.
type server struct {
	registry *editor.Registry
	hub      *events.Hub
	handler  http.Handler
}

func newServer(cfg *config.Config) *server {
	// A missing credential disables search but the editor still works.
	var searchHandler *search.Handler
	client, err := unsplash.New(cfg.APIURL, cfg.AccessKey, unsplash.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		slog.Warn("search disabled", "error", err)
		searchHandler = search.NewHandler(nil, cfg.PerPage, err)
	} else {
		searchHandler = search.NewHandler(client, cfg.PerPage, nil)
	}

	imageClient := editor.NewPublicClient(cfg.HTTPTimeout)
	if cfg.AllowPrivateImageHosts {
		slog.Warn("background loader may reach private networks")
		imageClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	loader := editor.NewHTTPLoader(imageClient, cfg.MaxImageBytes, editor.WithMaxPixels(cfg.MaxImagePixels))
	registry := editor.NewRegistry(loader, cfg.MaxCanvasWidth)

	hub := events.NewHub(func(editorID string) (editor.EditorStatus, error) {
		ed, err := registry.Get(editorID)
		if err != nil {
			return editor.EditorStatus{}, err
		}
		return ed.Status(), nil
	})

	editorHandler := editor.NewHandler(registry, func(ed *editor.Editor) {
		events.Attach(hub, ed)
	})
	exportHandler := export.NewHandler(editorHandler)
	wsHandler := events.NewHandler(hub, cfg.OriginPatterns())

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/api/config", configHandler(cfg, client != nil)).Methods("GET")
	r.HandleFunc("/api/search", searchHandler.Search).Methods("GET")

	api := r.PathPrefix("/api/editors").Subrouter()
	api.HandleFunc("", editorHandler.Create).Methods("POST")
	api.HandleFunc("/{editorId}", editorHandler.Get).Methods("GET")
	api.HandleFunc("/{editorId}", editorHandler.Delete).Methods("DELETE")
	api.HandleFunc("/{editorId}/session", editorHandler.OpenSession).Methods("PUT")
	api.HandleFunc("/{editorId}/text", editorHandler.AddText).Methods("POST")
	api.HandleFunc("/{editorId}/shapes", editorHandler.AddShape).Methods("POST")
	api.HandleFunc("/{editorId}/objects/{objectId}", editorHandler.UpdateObject).Methods("PATCH")
	api.HandleFunc("/{editorId}/selection", editorHandler.SetSelection).Methods("PUT")
	api.HandleFunc("/{editorId}/selection/objects", editorHandler.RemoveSelected).Methods("DELETE")
	api.HandleFunc("/{editorId}/resize", editorHandler.Resize).Methods("POST")
	api.HandleFunc("/{editorId}/render", editorHandler.Render).Methods("GET")
	api.HandleFunc("/{editorId}/export", exportHandler.Download).Methods("GET")

	r.HandleFunc("/ws/editors/{editorId}", wsHandler.ServeWS)

	// Preflights are answered before routing; r.Use middleware only runs
	// on a route match.
	var h http.Handler = r
	h = mw.CORS(cfg.Origins())(h)
	h = mw.Logger(h)
	h = mw.RequestID(h)
	h = mw.Recovery(h)

	return &server{registry: registry, hub: hub, handler: h}
}

func run(ctx context.Context, cfg *config.Config) error {
	s := newServer(cfg)
	registry, hub := s.registry, s.hub

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// The hub outlives the signal so the shutdown path below can flush
	// disposal events before stopping it.
	g.Go(func() error {
		hub.Run(context.Background())
		return nil
	})

	g.Go(func() error {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		registry.CloseAll()
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type configResponse struct {
	DisplayName   string   `json:"displayName"`
	DisplayEmail  string   `json:"displayEmail,omitempty"`
	MaxWidth      int      `json:"maxWidth"`
	AspectRatio   float64  `json:"aspectRatio"`
	Fonts         []string `json:"fonts"`
	SearchEnabled bool     `json:"searchEnabled"`
}

func configHandler(cfg *config.Config, searchEnabled bool) http.HandlerFunc {
	resp := configResponse{
		DisplayName:   cfg.DisplayName,
		DisplayEmail:  cfg.DisplayEmail,
		MaxWidth:      cfg.MaxCanvasWidth,
		AspectRatio:   editor.AspectRatio,
		Fonts:         render.Families(),
		SearchEnabled: searchEnabled,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("encode config", "error", err)
		}
	}
}
