package platform

import (
	"context"

	"monoamp/internal/config"
	"monoamp/internal/entity"
	"monoamp/internal/pianod"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Context provides the dependencies every platform needs during setup.
// One Context exists per integration instance; nothing is global.
type Context struct {
	// EntryID identifies the integration instance in unique ids
	EntryID string

	// Data is the coordinator publishing amplifier snapshots
	Data entity.DataSource

	// Gateway sends amplifier commands
	Gateway entity.Commander

	Config *config.Config

	// Logger is a structured logger. Platforms should use logger.Named.
	Logger *zap.Logger

	// ListRooms discovers the pianod rooms. Nil skips Pandora players.
	ListRooms func(ctx context.Context) ([]string, error)

	// NewSession opens the persistent session owned by one Pandora player
	NewSession func() *pianod.Session
}

// NewContext creates a platform context wired to the configured pianod controller
func NewContext(entryID string, data entity.DataSource, gateway entity.Commander, cfg *config.Config, logger *zap.Logger) *Context {
	opts := []pianod.SessionOption{
		pianod.WithReceiveTimeout(cfg.ReceiveTimeout),
		pianod.WithMaxDiscarded(cfg.MaxDiscarded),
		pianod.WithDialer(&websocket.Dialer{HandshakeTimeout: cfg.ReceiveTimeout}),
	}

	return &Context{
		EntryID: entryID,
		Data:    data,
		Gateway: gateway,
		Config:  cfg,
		Logger:  logger,
		ListRooms: func(ctx context.Context) ([]string, error) {
			return pianod.ListRooms(ctx, cfg.PianodURL(), logger, opts...)
		},
		NewSession: func() *pianod.Session {
			return pianod.NewSession(cfg.PianodURL(), logger, opts...)
		},
	}
}
