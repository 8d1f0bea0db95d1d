package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/gen1nya/WinMediaSessionProvider/cache"
	"github.com/gen1nya/WinMediaSessionProvider/config"
	"github.com/gen1nya/WinMediaSessionProvider/core/capture"
	"github.com/gen1nya/WinMediaSessionProvider/core/dsp"
	"github.com/gen1nya/WinMediaSessionProvider/core/hub"
	"github.com/gen1nya/WinMediaSessionProvider/core/media"
	"github.com/gen1nya/WinMediaSessionProvider/logger"
	"github.com/gen1nya/WinMediaSessionProvider/server"
	"github.com/gen1nya/WinMediaSessionProvider/settings"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streaming service",
	Long:  `Starts the media state and spectrum streaming endpoint together with the control API for the tray UI.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the components together and runs the service until a
// termination signal arrives.
func runServe() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
	})

	states := cache.NewStateCache()
	broadcastHub := hub.NewHub(states, cfg.QueueSize, cfg.SendTimeout)

	source := capture.NewMalgoSource(cfg.SampleRate)
	analyzer := dsp.NewAnalyzer(source, dsp.AnalyzerOptions{
		FFTLength:      cfg.FFTLength,
		BandCount:      cfg.BandCount,
		FloorDB:        cfg.FloorDB,
		NotifyInterval: cfg.NotifyInterval,
	}, broadcastHub.PublishSpectrum)

	var coalescer *media.Coalescer
	provider, err := media.SystemProvider()
	switch {
	case err == nil:
		coalescer = media.NewCoalescer(provider, states, broadcastHub.PublishState)
	case errors.Is(err, media.ErrProviderUnavailable):
		logger.Warn("media session provider unavailable", logger.ErrorField(err))
	default:
		logger.Error("media session provider failed", logger.ErrorField(err))
	}

	store := settings.NewStore(cfg.SettingsPath)

	srv := server.New(cfg, broadcastHub, analyzer, store, coalescer)
	if err := srv.Run(); err != nil {
		logger.Fatal("server terminated", logger.ErrorField(err))
	}
}
