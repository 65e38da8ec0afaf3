package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/Spaces/internal/adapters/http"
	"github.com/dkeye/Spaces/internal/adapters/identity"
	"github.com/dkeye/Spaces/internal/adapters/rtc"
	wsevents "github.com/dkeye/Spaces/internal/adapters/signal"
	"github.com/dkeye/Spaces/internal/adapters/spaceapi"
	"github.com/dkeye/Spaces/internal/app/orch"
	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchFocused bool

var watchCmd = &cobra.Command{
	Use:   "watch <space-id>",
	Short: "Follow a space and serve its view API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return watch(ctx, cfg, domain.SpaceID(args[0]))
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchFocused, "focused", true, "start polling immediately")
	rootCmd.AddCommand(watchCmd)
}

func orchOptions(c config.SpaceConfig) orch.Options {
	return orch.Options{
		PollInterval:       c.PollInterval,
		MediaInterval:      c.MediaInterval,
		ExitDelay:          c.ExitDelay,
		MessageTTL:         c.MessageTTL,
		JoinWindow:         c.JoinWindow,
		EndingSoon:         c.EndingSoon,
		Sentinel:           c.RoomSentinel,
		SpeakRequestLimit:  c.SpeakRequestLimit,
		SpeakRequestWindow: c.SpeakRequestWindow,
	}
}

func currentUser(ids core.IdentityStore) domain.UserID {
	self, ok := ids.CurrentUserID()
	if !ok {
		log.Warn().Str("module", "cmd").Msg("no identity set, the space view will close")
	}
	return self
}

func watch(ctx context.Context, cfg *config.Config, spaceID domain.SpaceID) error {
	self := currentUser(identity.NewFileStore(cfg.IdentityPath))

	engine, err := rtc.NewEngine(rtc.Config{
		SignalURL:  cfg.Media.SignalURL,
		ICEServers: cfg.Media.ICEServers,
		Cameras:    cfg.Media.Cameras,
	})
	if err != nil {
		return fmt.Errorf("media engine: %w", err)
	}
	hub := wsevents.NewHub(cfg.WS.PingPeriod, cfg.WS.ReadLimit)
	defer hub.Close()

	opts := orchOptions(cfg.Space)
	o := orch.New(spaceID, self, orch.Deps{
		API:   spaceapi.New(cfg.API.BaseURL, cfg.API.Timeout),
		Media: engine,
		Sink:  hub,
		Clock: core.SystemClock{},
	}, opts)
	defer o.Close()

	poller := orch.NewPoller(o, opts.PollInterval, opts.MediaInterval)
	defer poller.Stop()
	if watchFocused {
		poller.Start(ctx)
	}

	r := router.SetupRouter(ctx, cfg, router.NewHandlers(o, poller, hub))
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("module", "cmd").Str("addr", addr).Str("space", string(spaceID)).Msg("Spaces view started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Str("module", "cmd").Msg("Shutting down")
	case <-o.Done():
		reason, _ := o.Exited()
		log.Info().Str("module", "cmd").Str("reason", string(reason)).Msg("Left the space")
	case err := <-serveErr:
		log.Error().Err(err).Str("module", "cmd").Msg("server error")
		return err
	}

	poller.Stop()
	o.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := engine.DisconnectRoom(shutdownCtx); err != nil && !errors.Is(err, rtc.ErrNotConnected) {
		log.Warn().Err(err).Str("module", "cmd").Msg("disconnect room")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("module", "cmd").Msg("Server forced to shutdown")
	}
	log.Info().Str("module", "cmd").Msg("Server exited gracefully")
	return nil
}
