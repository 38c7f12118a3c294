package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvFileVar names the dotenv file read before the process environment.
const EnvFileVar = "CHAT_DESK_ENV_FILE"

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	ChatAPI  ChatAPIConfig  `envPrefix:"CHAT_API_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Sync     SyncConfig     `envPrefix:"SYNC_"`
	Security SecurityConfig `envPrefix:"SECURITY_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Addr          string `env:"ADDR" envDefault:"127.0.0.1:8080"`
	CORSOrigins   string `env:"CORS_ORIGINS" envDefault:"^https?://(localhost|127\\.0\\.0\\.1)(:\\d+)?$"`
	PprofEnabled  bool   `env:"PPROF_ENABLED"`
	StatsdAddress string `env:"STATSD_ADDRESS"`
	// APIToken guards the local API. Empty leaves it open to local callers.
	APIToken string `env:"API_TOKEN"`
	// RateLimit caps local API requests per second. Zero disables it.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"50" validate:"gte=0"`
}

type DatabaseConfig struct {
	Hosts    []string `env:"HOSTS" envDefault:"localhost:27017"`
	Direct   bool     `env:"DIRECT" envDefault:"true"`
	Username string   `env:"USERNAME"`
	Password string   `env:"PASSWORD"`
	AuthDB   string   `env:"AUTH_DB" envDefault:"admin"`
	Database string   `env:"DATABASE" envDefault:"chatdesk" validate:"required"`
}

const (
	LiveTransportWebsocket = "websocket"
	LiveTransportKafka     = "kafka"
)

type ChatAPIConfig struct {
	BaseURL       string        `env:"BASE_URL,required" validate:"required,url"`
	AppID         string        `env:"APP_ID,required" validate:"required"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryCount    int           `env:"RETRY_COUNT" envDefault:"3" validate:"gte=0"`
	LiveTransport string        `env:"LIVE_TRANSPORT" envDefault:"websocket" validate:"oneof=websocket kafka"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"chat.channel-events"`
	// GroupPrefix is suffixed per process: every instance must see every
	// partition of the topic.
	GroupPrefix string `env:"GROUP_PREFIX" envDefault:"chat-desk"`
	Version     string `env:"VERSION" envDefault:"3.6.0"`
}

type SyncConfig struct {
	PageSize    int  `env:"PAGE_SIZE" envDefault:"10" validate:"gte=1,lte=200"`
	AutoConnect bool `env:"AUTO_CONNECT"`
}

type SecurityConfig struct {
	// TokenKey is a base64 encoded 32 byte key. Empty stores tokens as is.
	TokenKey string `env:"TOKEN_KEY"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// Load reads the dotenv file named by CHAT_DESK_ENV_FILE (default .env),
// if present, then the process environment, which wins on conflicts.
func Load() (*Config, error) {
	path := os.Getenv(EnvFileVar)
	if path == "" {
		path = ".env"
	}
	environ, err := readEnvFile(path)
	if err != nil {
		return nil, err
	}
	for k, v := range env.ToMap(os.Environ()) {
		environ[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
