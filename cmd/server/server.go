package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	wordgame "github.com/jobinpjoseph707/word-game-multiplayer"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/client"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/config"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/feed"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/handlers"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/liveness"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/scheduler"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/session"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store"
	"github.com/jobinpjoseph707/word-game-multiplayer/internal/store/migrations"
)

// App is the wired server: storage, change feed, engine, timers and router
type App struct {
	cfg     *config.ServerConfig
	logger  zerolog.Logger
	Handler http.Handler
	Engine  *session.Engine

	rooms    store.RoomStore
	listener *feed.PGListener
	tracker  *liveness.Tracker
	timers   *session.Orchestrator
	sched    *scheduler.TimerScheduler
	bus      *feed.Bus
	closers  []func()
}

// sweepable lets the liveness sweep list rooms on the backend while deleting
// through the publishing store, so watchers hear about deletions
type sweepable struct {
	store.Lister
	store.RoomStore
}

// NewApp builds every component from cfg. Close releases what it opened.
func NewApp(ctx context.Context, cfg *config.ServerConfig, logger zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	ready := make(map[string]handlers.CheckFunc)

	words, err := loadWords(cfg.Game.WordsFile)
	if err != nil {
		return nil, err
	}

	var (
		backend store.RoomStore
		lister  store.Lister
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if cfg.Store.Migrate {
			if err := migrations.Migrate(cfg.Store.DatabaseURL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("database migrations applied")
		}
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		ready["store"] = pg.Ping
		backend, lister = pg, pg
	default:
		mem := store.NewMemoryStore()
		backend, lister = mem, mem
	}

	// pick the push channel; a nil subscriber means watchers only poll
	var sub feed.Subscriber
	a.rooms = backend
	switch {
	case cfg.Feed.Mode == config.FeedPoll:
	case cfg.Feed.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Feed.RedisAddr,
			Password: cfg.Feed.RedisPassword,
			DB:       cfg.Feed.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		rf := feed.NewRedisFeed(rdb, logger)
		ready["feed"] = rf.Ping
		a.rooms = feed.NewPublishingStore(backend, rf, logger)
		sub = rf
	case cfg.Store.Backend == config.BackendPostgres:
		// the tables notify through triggers, so writes need no publisher
		pg := backend.(*store.PostgresStore)
		a.listener = feed.NewPGListener(pg.Pool(), cfg.Feed.RetryInterval, logger)
		sub = a.listener
	default:
		a.bus = feed.NewBus()
		a.rooms = feed.NewPublishingStore(backend, a.bus, logger)
		sub = a.bus
	}

	opts := session.DefaultOptions()
	opts.WordRevealSeconds = cfg.Game.WordRevealSeconds
	opts.VoteRevealSeconds = cfg.Game.VoteRevealSeconds
	opts.PlayerTimeout = cfg.Liveness.PlayerTimeout
	opts.MaxPlayers = cfg.Game.MaxPlayersPerRoom
	opts.DefaultSettings = cfg.RoomDefaults()
	a.Engine = session.NewEngine(a.rooms, words, opts, logger)

	a.sched = scheduler.New()
	a.timers = session.NewOrchestrator(a.Engine, a.sched, cfg.Game.TickInterval, logger)

	watcher := feed.NewWatcher(a.rooms, sub, feed.WatcherConfig{
		Mode:          feed.Mode(cfg.Feed.Mode),
		PollInterval:  cfg.Feed.PollInterval,
		RetryInterval: cfg.Feed.RetryInterval,
	}, logger)

	if cfg.Liveness.Enabled {
		a.tracker = liveness.NewTracker(sweepable{Lister: lister, RoomStore: a.rooms}, a.Engine, liveness.Config{
			Interval:      cfg.Liveness.Interval,
			PlayerTimeout: cfg.Liveness.PlayerTimeout,
			RoomTimeout:   cfg.Liveness.RoomTimeout,
		}, logger)
	}

	h := handlers.New(a.Engine, watcher, a.timers, handlers.Options{
		PublicURL:         cfg.Server.PublicURL,
		MaxSSEConnections: cfg.Server.MaxSSEConnections,
		Client: client.Config{
			HeartbeatInterval:    cfg.Client.HeartbeatInterval,
			MaxHeartbeatFailures: cfg.Client.MaxHeartbeatFailures,
		},
		Ready: ready,
	}, logger)
	a.Handler = handlers.SetupRouter(h, cfg, &handlers.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})

	logger.Info().
		Str("store", cfg.Store.Backend).
		Str("feed", cfg.Feed.Mode).
		Bool("redis", cfg.Feed.RedisAddr != "").
		Bool("liveness", cfg.Liveness.Enabled).
		Msg("server components ready")
	return a, nil
}

// Run starts the background loops and blocks until ctx ends
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if a.listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("change listener stopped")
			}
		}()
	}
	if a.tracker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("liveness sweep stopped")
			}
		}()
	}
	wg.Wait()
}

// Close stops the timers and releases connections
func (a *App) Close() {
	a.timers.Stop()
	a.sched.Stop()
	if a.bus != nil {
		a.bus.CloseAll()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadWords reads the configured word bank, or the built-in one
func loadWords(path string) (game.WordBank, error) {
	var r io.Reader = bytes.NewReader(wordgame.DefaultWords)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open words file: %w", err)
		}
		defer f.Close()
		r = f
	}
	words, err := game.LoadWordBank(r)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	return words, nil
}
