// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/omochice/roomcast/internal/chat"
)

const (
	UnreadMemory = "memory"
	UnreadRedis  = "redis"
)

// Config is the complete server configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`
	WSAddr     string `env:"WS_ADDR,default=:8081"`
	// SinglePort serves WebSocket upgrades on LISTEN_ADDR and ignores WS_ADDR.
	SinglePort bool `env:"SINGLE_PORT,default=false"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`
	LogFile   string `env:"LOG_FILE"`

	JWTSecret string `env:"JWT_SECRET,required=true"`
	JWTIssuer string `env:"JWT_ISSUER,default=roomcast"`

	AuthTimeout      time.Duration `env:"AUTH_TIMEOUT,default=10s"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT,default=0s"`
	SendQueueSize    int           `env:"SEND_QUEUE_SIZE,default=256"`
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH,default=2000"`
	PruneInterval    time.Duration `env:"PRUNE_INTERVAL,default=1m"`

	HistoryPath string `env:"HISTORY_PATH"`

	UnreadBackend string `env:"UNREAD_BACKEND,default=memory"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	RedisPrefix   string `env:"REDIS_KEY_PREFIX,default=roomcast:"`

	RateMessagePoints int           `env:"RATE_MESSAGE_POINTS,default=10"`
	RateMessageWindow time.Duration `env:"RATE_MESSAGE_WINDOW,default=60s"`
	RateMessageBlock  time.Duration `env:"RATE_MESSAGE_BLOCK,default=60s"`
	RateRoomPoints    int           `env:"RATE_ROOM_POINTS,default=5"`
	RateRoomWindow    time.Duration `env:"RATE_ROOM_WINDOW,default=60s"`
	RateRoomBlock     time.Duration `env:"RATE_ROOM_BLOCK,default=30s"`
	RateTypingPoints  int           `env:"RATE_TYPING_POINTS,default=20"`
	RateTypingWindow  time.Duration `env:"RATE_TYPING_WINDOW,default=60s"`
	RateTypingBlock   time.Duration `env:"RATE_TYPING_BLOCK,default=10s"`
}

// Load reads an optional .env file from the working directory, then the
// process environment, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.SendQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", c.MaxMessageLength))
	}
	if c.AuthTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_TIMEOUT must be positive, got %s", c.AuthTimeout))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("IDLE_TIMEOUT must not be negative, got %s", c.IdleTimeout))
	}
	if c.PruneInterval <= 0 {
		errs = append(errs, fmt.Errorf("PRUNE_INTERVAL must be positive, got %s", c.PruneInterval))
	}
	switch c.UnreadBackend {
	case UnreadMemory, UnreadRedis:
	default:
		errs = append(errs, fmt.Errorf("UNREAD_BACKEND must be %q or %q, got %q", UnreadMemory, UnreadRedis, c.UnreadBackend))
	}
	for class, b := range c.Budgets() {
		if b.Points <= 0 {
			errs = append(errs, fmt.Errorf("%s rate limit points must be positive, got %d", class, b.Points))
		}
		if b.Window <= 0 {
			errs = append(errs, fmt.Errorf("%s rate limit window must be positive, got %s", class, b.Window))
		}
		if b.Block < 0 {
			errs = append(errs, fmt.Errorf("%s rate limit block must not be negative, got %s", class, b.Block))
		}
	}
	return errors.Join(errs...)
}

// Budgets converts the rate limit settings for chat.NewLimiter.
func (c Config) Budgets() chat.Budgets {
	return chat.Budgets{
		chat.ClassMessage: {Points: c.RateMessagePoints, Window: c.RateMessageWindow, Block: c.RateMessageBlock},
		chat.ClassRoomOp:  {Points: c.RateRoomPoints, Window: c.RateRoomWindow, Block: c.RateRoomBlock},
		chat.ClassTyping:  {Points: c.RateTypingPoints, Window: c.RateTypingWindow, Block: c.RateTypingBlock},
	}
}
