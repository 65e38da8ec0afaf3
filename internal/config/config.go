package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string `mapstructure:"mode"`
	Port         int    `mapstructure:"port"`
	StaticPath   string `mapstructure:"static_path"`
	Secret       string `mapstructure:"secret"`
	IdentityPath string `mapstructure:"identity_path"`

	API   APIConfig   `mapstructure:"api"`
	Media MediaConfig `mapstructure:"media"`
	Space SpaceConfig `mapstructure:"space"`
	WS    WSConfig    `mapstructure:"ws"`
	Log   LogConfig   `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MediaConfig struct {
	SignalURL  string   `mapstructure:"signal_url"`
	ICEServers []string `mapstructure:"ice_servers"`
	Cameras    []string `mapstructure:"cameras"`
}

type SpaceConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MediaInterval      time.Duration `mapstructure:"media_interval"`
	ExitDelay          time.Duration `mapstructure:"exit_delay"`
	MessageTTL         time.Duration `mapstructure:"message_ttl"`
	JoinWindow         time.Duration `mapstructure:"join_window"`
	EndingSoon         time.Duration `mapstructure:"ending_soon"`
	RoomSentinel       string        `mapstructure:"room_sentinel"`
	SpeakRequestLimit  int           `mapstructure:"speak_request_limit"`
	SpeakRequestWindow time.Duration `mapstructure:"speak_request_window"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("identity_path", defaultIdentityPath())

	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout", "10s")

	v.SetDefault("media.signal_url", "ws://localhost:8081/api/ws/signal")
	v.SetDefault("media.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("media.cameras", []string{"front", "back"})

	v.SetDefault("space.poll_interval", "1s")
	v.SetDefault("space.media_interval", "250ms")
	v.SetDefault("space.exit_delay", "3s")
	v.SetDefault("space.message_ttl", "4s")
	v.SetDefault("space.join_window", "5m")
	v.SetDefault("space.ending_soon", "1m")
	v.SetDefault("space.room_sentinel", "pending_")
	v.SetDefault("space.speak_request_limit", 3)
	v.SetDefault("space.speak_request_window", "1m")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

func defaultIdentityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "identity.json"
	}
	return dir + "/spaces/identity.json"
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then environment
// overrides (api.base_url -> API_BASE_URL).
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("api", cfg.API.BaseURL).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Space.PollInterval <= 0 || c.Space.MediaInterval <= 0 {
		return errors.New("space.poll_interval and space.media_interval must be positive")
	}
	if c.Space.SpeakRequestLimit < 1 {
		return errors.New("space.speak_request_limit must be at least 1")
	}
	return nil
}
