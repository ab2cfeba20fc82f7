package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monoamp/internal/amp"
	"monoamp/internal/api"
	"monoamp/internal/clock"
	"monoamp/internal/coordinator"
	"monoamp/internal/entity"
	"monoamp/internal/mqtt"
	"monoamp/internal/platform"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the amplifier and serve its entities over MQTT and HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return err
		}

		logger.Info("Starting monoamp",
			zap.String("host", cfg.Host),
			zap.String("instance_id", instanceID),
			zap.Bool("read_only", cfg.ReadOnly))
		if cfg.ReadOnly {
			logger.Info("Running in READ-ONLY mode - no commands will reach the amplifier")
		}

		gw := amp.NewGateway(cfg.AmpEndpoint(), cfg.RequestTimeout, logger, amp.WithReadOnly(cfg.ReadOnly))
		coord := coordinator.New(gw, clock.NewRealClock(), cfg.PollInterval, logger)

		if err := firstRefresh(ctx, coord, logger); err != nil {
			return err
		}

		registry := platform.NewDefaultRegistry(logger)
		entities, err := registry.SetupAll(ctx, platform.NewContext(instanceID, coord, gw, cfg, logger))
		if err != nil {
			return err
		}
		defer closePandora(entities, logger)

		coord.Start(ctx)
		defer coord.Stop()

		if cfg.API.Enabled {
			server := api.NewServer(coord, entities, logger, cfg.API.Port)
			if err := server.Start(); err != nil {
				return err
			}
			defer server.Stop()
		}

		bridgeDone := make(chan struct{})
		var bridge *mqtt.Bridge
		if cfg.MQTT.Enabled {
			bridge = mqtt.New(cfg.MQTT, cfg.ScanInterval, instanceID, entities, coord, clock.NewRealClock(), logger)
			go func() {
				defer close(bridgeDone)
				if err := bridge.Start(ctx); err != nil {
					logger.Error("MQTT bridge stopped", zap.Error(err))
				}
			}()
		} else {
			close(bridgeDone)
		}

		logger.Info("monoamp running. Press Ctrl+C to exit.", zap.Int("entities", len(entities)))
		<-ctx.Done()
		logger.Info("Shutting down gracefully...")

		if bridge != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := bridge.Stop(shutdownCtx); err != nil {
				logger.Warn("MQTT disconnect failed", zap.Error(err))
			}
			cancel()
		}
		<-bridgeDone
		return nil
	},
}

// firstRefresh retries the initial poll with exponential backoff until it
// succeeds or ctx is cancelled
func firstRefresh(ctx context.Context, coord *coordinator.Coordinator, logger *zap.Logger) error {
	backoff := initialBackoff
	for {
		err := coord.FirstRefresh(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, coordinator.ErrNotReady) {
			return err
		}

		logger.Warn("Amplifier not ready, retrying",
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func closePandora(entities []entity.Entity, logger *zap.Logger) {
	for _, e := range entities {
		if p, ok := e.(*entity.PandoraPlayer); ok {
			if err := p.Close(); err != nil {
				logger.Debug("Failed to close pianod session", zap.Int("player", p.Index()), zap.Error(err))
			}
		}
	}
}
