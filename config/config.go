package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"tradegate"
	"tradegate/logger"
)

type Config struct {
	BingX  BingXConfig  `yaml:"bingx"`
	Relay  RelayConfig  `yaml:"relay"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type BingXConfig struct {
	APIKey              string `yaml:"api_key"`
	APISecret           string `yaml:"api_secret"`
	RestHost            string `yaml:"rest_host"`
	WsHost              string `yaml:"ws_host"`
	ProxyURL            string `yaml:"proxy_url"`
	ClientOrderIDPrefix string `yaml:"client_order_id_prefix"`
	UseClientOrderID    bool   `yaml:"use_client_order_id"`
}

type RelayConfig struct {
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"` // 0 keeps a silent connection open
	ObserverQueueSize int           `yaml:"observer_queue_size"`
}

type ServerConfig struct {
	Listen       string   `yaml:"listen"`
	ClientBuffer int      `yaml:"client_buffer"` // per browser client
	CORSOrigins  []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			ReconnectInterval: 5 * time.Second,
			PingInterval:      30 * time.Second,
			ObserverQueueSize: 256,
		},
		Server: ServerConfig{
			Listen:       ":3001",
			ClientBuffer: 256,
			CORSOrigins:  []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env (if any), then the yaml file at path (if set), then the environment.
// Later sources win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.BingX.APIKey, "BINGX_API_KEY")
	setString(&c.BingX.APISecret, "BINGX_API_SECRET")
	setString(&c.BingX.RestHost, "BINGX_REST_HOST")
	setString(&c.BingX.WsHost, "BINGX_WS_HOST")
	setString(&c.BingX.ProxyURL, "PROXY_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Server.Listen = ":" + strings.TrimPrefix(port, ":")
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Relay.ReconnectInterval <= 0 {
		c.Relay.ReconnectInterval = def.Relay.ReconnectInterval
	}
	if c.Relay.PingInterval <= 0 {
		c.Relay.PingInterval = def.Relay.PingInterval
	}
	if c.Relay.ObserverQueueSize <= 0 {
		c.Relay.ObserverQueueSize = def.Relay.ObserverQueueSize
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Server.ClientBuffer <= 0 {
		c.Server.ClientBuffer = def.Server.ClientBuffer
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) GatewayOptions() tradegate.Options {
	return tradegate.Options{
		ExchangeName:        string(tradegate.BingX),
		AccessKey:           c.BingX.APIKey,
		SecretKey:           c.BingX.APISecret,
		RestHost:            c.BingX.RestHost,
		WsHost:              c.BingX.WsHost,
		ProxyUrl:            c.BingX.ProxyURL,
		ClientOrderIDPrefix: c.BingX.ClientOrderIDPrefix,
		UseClientOrderID:    c.BingX.UseClientOrderID,
		ReconnectInterval:   c.Relay.ReconnectInterval,
		PingInterval:        c.Relay.PingInterval,
		ReadTimeout:         c.Relay.ReadTimeout,
		ObserverQueueSize:   c.Relay.ObserverQueueSize,
	}
}

func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		OutputFile: c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}
