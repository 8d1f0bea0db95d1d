package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/gen1nya/WinMediaSessionProvider/config"
	"github.com/gen1nya/WinMediaSessionProvider/core/capture"
	"github.com/gen1nya/WinMediaSessionProvider/core/dsp"
	"github.com/gen1nya/WinMediaSessionProvider/core/hub"
	"github.com/gen1nya/WinMediaSessionProvider/core/media"
	"github.com/gen1nya/WinMediaSessionProvider/logger"
	"github.com/gen1nya/WinMediaSessionProvider/settings"
)

// Server owns the local streaming endpoint and the control API, and
// drives the component lifecycle: hub drain loop, persisted settings,
// settings-file watch and the ordered shutdown sequence.
type Server struct {
	cfg       *config.Config
	hub       *hub.Hub
	analyzer  *dsp.Analyzer
	store     *settings.Store
	coalescer *media.Coalescer // nil when the platform has no media provider
}

// New assembles the server around already-constructed components.
func New(cfg *config.Config, h *hub.Hub, analyzer *dsp.Analyzer, store *settings.Store, coalescer *media.Coalescer) *Server {
	return &Server{cfg: cfg, hub: h, analyzer: analyzer, store: store, coalescer: coalescer}
}

// Run starts everything and blocks until SIGINT/SIGTERM, then shuts the
// service down in order: stop accepting, cancel producers, drain and
// close consumers bounded by the shutdown deadline, release capture.
func (s *Server) Run() error {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/ws", s.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/devices", s.GetDevicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/device", s.GetDeviceHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/device", s.SetDeviceHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/enable", s.EnableHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/status", s.StatusHandler).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the websocket stream lives on these
		// connections and has its own per-send deadlines.
		IdleTimeout: 120 * time.Second,
	}

	go s.hub.Run()

	s.applyPersisted()

	if s.coalescer != nil {
		if err := s.coalescer.Run(); err != nil {
			logger.Warn("media coalescer unavailable", logger.ErrorField(err))
		}
	} else {
		logger.Info("no media session provider, streaming spectrum only")
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := s.store.Watch(watchCtx, s.applySettings); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("settings watch stopped", logger.ErrorField(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logger.String("addr", s.cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.shutdown(httpServer)
		return err
	case sig := <-quit:
		logger.Info("shutting down", logger.String("signal", sig.String()))
		s.shutdown(httpServer)
		return nil
	}
}

// shutdown performs the ordered teardown. Every step is bounded; the
// whole sequence completes within the configured deadlines.
func (s *Server) shutdown(httpServer *http.Server) {
	// 1. Stop accepting new consumers.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", logger.ErrorField(err))
	}

	// 2. Cancel producers (also releases the capture device).
	if s.coalescer != nil {
		s.coalescer.Close()
	}
	s.analyzer.Stop()

	// 3. Drain the queue and close consumers, bounded by the deadline.
	s.hub.Shutdown(s.cfg.ShutdownTimeout)
}

// applyPersisted applies the settings saved by previous runs.
func (s *Server) applyPersisted() {
	persisted, err := s.store.Load()
	if err != nil {
		logger.Warn("failed to load settings", logger.ErrorField(err))
		return
	}
	s.applySettings(persisted)
}

// applySettings pushes a settings value into the analyzer. Used both at
// startup and when the settings file changes on disk.
func (s *Server) applySettings(st settings.Settings) {
	if err := s.analyzer.SetDevice(st.DeviceID); err != nil {
		logger.Warn("device from settings unavailable",
			logger.String("device", st.DeviceID), logger.ErrorField(err))
	}
	if err := s.analyzer.Enable(st.Enabled); err != nil {
		if errors.Is(err, capture.ErrNoDevice) {
			logger.Warn("spectrum unavailable: no capture device")
			return
		}
		logger.Error("failed to apply analyzer settings", logger.ErrorField(err))
	}
}

// persist updates one field of the settings file read-modify-write.
func (s *Server) persist(mutate func(*settings.Settings)) error {
	current, err := s.store.Load()
	if err != nil {
		return err
	}
	mutate(&current)
	return s.store.Save(current)
}

// corsMiddleware allows the tray UI and local visualizers to call the
// control API from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
