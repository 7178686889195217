package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/auth"
	"github.com/arnavshah/ionm-board/pkg/board"
	"github.com/arnavshah/ionm-board/pkg/config"
	"github.com/arnavshah/ionm-board/pkg/database"
	"github.com/arnavshah/ionm-board/pkg/feed"
	"github.com/arnavshah/ionm-board/pkg/handlers"
	"github.com/arnavshah/ionm-board/pkg/store"
)

// App wires the store, change feed and board for one process
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Broker feed.Broker
	Store  store.Store
	Engine *board.Engine
	Board  *board.Session
}

// NewBroker returns the Redis change feed when configured, else an in-process hub
func NewBroker(cfg *config.Config, logger *zap.Logger) (feed.Broker, error) {
	if cfg.RedisAddr == "" {
		return feed.NewHub(), nil
	}
	return feed.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
}

// NewStore opens the configured staff store
func NewStore(cfg *config.Config, broker feed.Broker, logger *zap.Logger) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		logger.Info("using in-memory staff store")
		return store.NewMemory(broker), nil
	}
	db, err := database.InitDB(cfg.DatabaseURL, cfg.DataPath, logger)
	if err != nil {
		return nil, err
	}
	return store.NewGorm(db, broker, logger), nil
}

// New builds the application and starts the shared board session. A store
// that cannot be read yet is logged, not fatal: the board reports itself
// stale until a resync succeeds.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	broker, err := NewBroker(cfg, logger)
	if err != nil {
		return nil, err
	}
	st, err := NewStore(cfg, broker, logger)
	if err != nil {
		_ = broker.Close()
		return nil, err
	}

	engine := board.NewEngine(st, logger)
	sess := board.NewSession(st, engine, logger)
	if err := sess.Start(ctx); err != nil {
		if !errors.Is(err, board.ErrStoreUnavailable) {
			_ = sess.Close()
			_ = broker.Close()
			return nil, fmt.Errorf("start board: %w", err)
		}
		logger.Warn("board started without staff data", zap.Error(err))
	}

	return &App{
		Config: cfg,
		Logger: logger,
		Broker: broker,
		Store:  st,
		Engine: engine,
		Board:  sess,
	}, nil
}

// Handler returns the HTTP handlers bound to this application
func (a *App) Handler() *handlers.Handler {
	return &handlers.Handler{
		Store:      a.Store,
		Engine:     a.Engine,
		Board:      a.Board,
		Issuer:     auth.NewIssuer(a.Config.JWTSecret, a.Config.TokenTTL),
		DefaultPin: a.Config.DefaultPin,
		Logger:     a.Logger,
	}
}

// Close stops the board session and the change feed
func (a *App) Close() error {
	return errors.Join(a.Board.Close(), a.Broker.Close())
}
