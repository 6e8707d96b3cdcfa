package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using Viper
// Priority order: Environment variables > Config file > Defaults
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("server")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wordgame")
	}

	// WORDGAME_GAME_TICKINTERVAL style overrides for every key
	v.SetEnvPrefix("wordgame")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Short names for the settings deployments touch most
	bindEnv(v, "server.port", "PORT")
	bindEnv(v, "server.host", "HOST")
	bindEnv(v, "server.publicurl", "PUBLIC_URL")
	bindEnv(v, "server.loglevel", "LOG_LEVEL")
	bindEnv(v, "server.logformat", "LOG_FORMAT")
	bindEnv(v, "server.ratelimit", "RATE_LIMIT")
	bindEnv(v, "server.ratelimitburst", "RATE_LIMIT_BURST")
	bindEnv(v, "server.maxrequestsize", "MAX_REQUEST_SIZE")
	bindEnv(v, "server.maxsseconnections", "MAX_SSE_CONNECTIONS")
	bindEnv(v, "game.wordsfile", "WORDS_FILE")
	bindEnv(v, "store.backend", "STORE_BACKEND")
	bindEnv(v, "store.databaseurl", "DATABASE_URL")
	bindEnv(v, "feed.mode", "FEED_MODE")
	bindEnv(v, "feed.redisaddr", "REDIS_ADDR")
	bindEnv(v, "feed.redispassword", "REDIS_PASSWORD")

	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; continue with env vars and defaults
	}

	cfg := &ServerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper, key, env string) {
	// BindEnv only fails without arguments
	_ = v.BindEnv(key, "WORDGAME_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
}

func setDefaults(v *viper.Viper, d *ServerConfig) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.publicurl", d.Server.PublicURL)
	v.SetDefault("server.readtimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writetimeout", d.Server.WriteTimeout)
	v.SetDefault("server.idletimeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdowntimeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.requesttimeout", d.Server.RequestTimeout)
	v.SetDefault("server.ssetimeout", d.Server.SSETimeout)
	v.SetDefault("server.ratelimit", d.Server.RateLimit)
	v.SetDefault("server.ratelimitburst", d.Server.RateLimitBurst)
	v.SetDefault("server.maxrequestsize", d.Server.MaxRequestSize)
	v.SetDefault("server.maxsseconnections", d.Server.MaxSSEConnections)
	v.SetDefault("server.loglevel", d.Server.LogLevel)
	v.SetDefault("server.logformat", d.Server.LogFormat)

	v.SetDefault("game.maxplayersperroom", d.Game.MaxPlayersPerRoom)
	v.SetDefault("game.defaulttotalplayers", d.Game.DefaultTotalPlayers)
	v.SetDefault("game.defaultimpostercount", d.Game.DefaultImposterCount)
	v.SetDefault("game.defaultdifficulty", d.Game.DefaultDifficulty)
	v.SetDefault("game.defaultroundtime", d.Game.DefaultRoundTime)
	v.SetDefault("game.wordrevealseconds", d.Game.WordRevealSeconds)
	v.SetDefault("game.voterevealseconds", d.Game.VoteRevealSeconds)
	v.SetDefault("game.tickinterval", d.Game.TickInterval)
	v.SetDefault("game.wordsfile", d.Game.WordsFile)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.databaseurl", d.Store.DatabaseURL)
	v.SetDefault("store.migrate", d.Store.Migrate)

	v.SetDefault("feed.mode", d.Feed.Mode)
	v.SetDefault("feed.redisaddr", d.Feed.RedisAddr)
	v.SetDefault("feed.redispassword", d.Feed.RedisPassword)
	v.SetDefault("feed.redisdb", d.Feed.RedisDB)
	v.SetDefault("feed.pollinterval", d.Feed.PollInterval)
	v.SetDefault("feed.retryinterval", d.Feed.RetryInterval)

	v.SetDefault("liveness.enabled", d.Liveness.Enabled)
	v.SetDefault("liveness.interval", d.Liveness.Interval)
	v.SetDefault("liveness.playertimeout", d.Liveness.PlayerTimeout)
	v.SetDefault("liveness.roomtimeout", d.Liveness.RoomTimeout)

	v.SetDefault("client.heartbeatinterval", d.Client.HeartbeatInterval)
	v.SetDefault("client.maxheartbeatfailures", d.Client.MaxHeartbeatFailures)
}
