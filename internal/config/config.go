package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// This file defines the configuration structures used by viper_config.go
// The actual loading is handled by viper in viper_config.go

// Store backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Feed modes, matching feed.Mode
const (
	FeedAuto = "auto"
	FeedPush = "push"
	FeedPoll = "poll"
)

// ServerConfig represents the server configuration
type ServerConfig struct {
	Server   ServerSettings   `yaml:"server"`
	Game     GameSettings     `yaml:"game"`
	Store    StoreSettings    `yaml:"store"`
	Feed     FeedSettings     `yaml:"feed"`
	Liveness LivenessSettings `yaml:"liveness"`
	Client   ClientSettings   `yaml:"client"`
}

// ServerSettings contains HTTP and process settings
type ServerSettings struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	PublicURL       string        `yaml:"publicURL"` // base of the join links encoded in QR codes
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"` // 0 for SSE support
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	SSETimeout      time.Duration `yaml:"sseTimeout"` // 0 = no timeout

	// Rate limiting (using golang.org/x/time/rate)
	RateLimit      float64 `yaml:"rateLimit"` // requests per second
	RateLimitBurst int     `yaml:"rateLimitBurst"`

	MaxRequestSize    int64 `yaml:"maxRequestSize"`
	MaxSSEConnections int   `yaml:"maxSSEConnections"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// GameSettings are the defaults and pacing of every room
type GameSettings struct {
	MaxPlayersPerRoom    int           `yaml:"maxPlayersPerRoom"`
	DefaultTotalPlayers  int           `yaml:"defaultTotalPlayers"`
	DefaultImposterCount int           `yaml:"defaultImposterCount"`
	DefaultDifficulty    string        `yaml:"defaultDifficulty"`
	DefaultRoundTime     int           `yaml:"defaultRoundTime"` // seconds
	WordRevealSeconds    int           `yaml:"wordRevealSeconds"`
	VoteRevealSeconds    int           `yaml:"voteRevealSeconds"`
	TickInterval         time.Duration `yaml:"tickInterval"`
	WordsFile            string        `yaml:"wordsFile"` // optional YAML word bank
}

// StoreSettings selects where rooms live
type StoreSettings struct {
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"databaseURL"`
	Migrate     bool   `yaml:"migrate"`
}

// FeedSettings selects how clients learn about changes
type FeedSettings struct {
	Mode          string        `yaml:"mode"`
	RedisAddr     string        `yaml:"redisAddr"` // enables the redis feed
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	PollInterval  time.Duration `yaml:"pollInterval"`
	RetryInterval time.Duration `yaml:"retryInterval"`
}

// LivenessSettings tunes the garbage-collection sweep
type LivenessSettings struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	PlayerTimeout time.Duration `yaml:"playerTimeout"`
	RoomTimeout   time.Duration `yaml:"roomTimeout"`
}

// ClientSettings tunes each connected player's session
type ClientSettings struct {
	HeartbeatInterval    time.Duration `yaml:"heartbeatInterval"`
	MaxHeartbeatFailures int           `yaml:"maxHeartbeatFailures"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *ServerConfig {
	defaults := game.DefaultSettings()
	return &ServerConfig{
		Server: ServerSettings{
			Port:              "", // Must be set via env
			Host:              "", // Must be set via env
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // SSE streams stay open
			IdleTimeout:       0,
			ShutdownTimeout:   30 * time.Second,
			RequestTimeout:    60 * time.Second,
			SSETimeout:        24 * time.Hour,
			RateLimit:         10,
			RateLimitBurst:    20,
			MaxRequestSize:    1048576, // 1MB
			MaxSSEConnections: 1000,
			LogLevel:          "info",
			LogFormat:         "text",
		},
		Game: GameSettings{
			MaxPlayersPerRoom:    20,
			DefaultTotalPlayers:  defaults.TotalPlayers,
			DefaultImposterCount: defaults.ImposterCount,
			DefaultDifficulty:    string(defaults.Difficulty),
			DefaultRoundTime:     defaults.RoundTimeSeconds,
			WordRevealSeconds:    5,
			VoteRevealSeconds:    8,
			TickInterval:         time.Second,
		},
		Store: StoreSettings{
			Backend: BackendMemory,
			Migrate: true,
		},
		Feed: FeedSettings{
			Mode:          FeedAuto,
			PollInterval:  time.Second,
			RetryInterval: 10 * time.Second,
		},
		Liveness: LivenessSettings{
			Enabled:       true,
			Interval:      30 * time.Second,
			PlayerTimeout: 2 * time.Minute,
			RoomTimeout:   2 * time.Hour,
		},
		Client: ClientSettings{
			HeartbeatInterval:    30 * time.Second,
			MaxHeartbeatFailures: 3,
		},
	}
}

// RoomDefaults are the settings a new room starts with
func (c *ServerConfig) RoomDefaults() game.Settings {
	return game.Settings{
		TotalPlayers:     c.Game.DefaultTotalPlayers,
		ImposterCount:    c.Game.DefaultImposterCount,
		Difficulty:       game.Difficulty(strings.ToLower(c.Game.DefaultDifficulty)),
		RoundTimeSeconds: c.Game.DefaultRoundTime,
	}
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	// Required fields
	if c.Server.Port == "" {
		return fmt.Errorf("PORT environment variable must be set")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HOST environment variable must be set")
	}
	switch strings.ToLower(c.Server.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("logFormat must be text or json, got %q", c.Server.LogFormat)
	}

	if c.Game.MaxPlayersPerRoom < game.MinPlayers {
		return fmt.Errorf("maxPlayersPerRoom must be at least %d", game.MinPlayers)
	}
	if err := c.RoomDefaults().Validate(c.Game.MaxPlayersPerRoom); err != nil {
		return fmt.Errorf("default room settings: %w", err)
	}
	if c.Game.WordRevealSeconds < 1 || c.Game.VoteRevealSeconds < 1 {
		return fmt.Errorf("word and vote reveal must last at least one second")
	}
	if c.Game.TickInterval <= 0 {
		return fmt.Errorf("tickInterval must be positive")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Feed.Mode {
	case FeedAuto, FeedPush, FeedPoll:
	default:
		return fmt.Errorf("unknown feed mode %q", c.Feed.Mode)
	}
	if c.Feed.PollInterval <= 0 {
		return fmt.Errorf("feed pollInterval must be positive")
	}

	if c.Liveness.Enabled && (c.Liveness.Interval <= 0 || c.Liveness.PlayerTimeout <= 0 || c.Liveness.RoomTimeout <= 0) {
		return fmt.Errorf("liveness interval and timeouts must be positive")
	}
	if c.Client.HeartbeatInterval <= 0 || c.Client.MaxHeartbeatFailures < 1 {
		return fmt.Errorf("client heartbeat interval and max failures must be positive")
	}
	// a heartbeating player must never look stale to the sweep
	if c.Liveness.Enabled && c.Client.HeartbeatInterval >= c.Liveness.PlayerTimeout {
		return fmt.Errorf("heartbeatInterval must be shorter than playerTimeout")
	}

	return nil
}
