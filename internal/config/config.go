package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type TurnConfig struct {
	StunURL            string `mapstructure:"stun_url" json:"stun_url"`
	Host               string `mapstructure:"host" json:"host"`
	Port               int    `mapstructure:"port" json:"port"`
	Username           string `mapstructure:"username" json:"username"`
	Credential         string `mapstructure:"credential" json:"credential"`
	ICETransportPolicy string `mapstructure:"ice_transport_policy" json:"ice_transport_policy"`
}

// IRCConfig points the browser client at the external text-chat relay.
// The server never speaks IRC itself; it only hands these out.
type IRCConfig struct {
	Server         string   `mapstructure:"server" json:"server"`
	Channel        string   `mapstructure:"channel" json:"channel"`
	Protocols      []string `mapstructure:"protocols" json:"protocols"`
	User           string   `mapstructure:"user" json:"user"`
	Realname       string   `mapstructure:"realname" json:"realname"`
	MaxNickLength  int      `mapstructure:"max_nick_length" json:"max_nick_length"`
	ReconnectDelay int      `mapstructure:"reconnect_delay" json:"reconnect_delay"`
	JoinDelay      int      `mapstructure:"join_delay" json:"join_delay"`
	MaxBacklog     int      `mapstructure:"max_backlog" json:"max_backlog"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Version    string        `mapstructure:"version"`
	MaxUsers   int           `mapstructure:"max_users"`
	MaxCameras int           `mapstructure:"max_cameras"`
	CaptchaTTL time.Duration `mapstructure:"captcha_ttl"`
	Turn       TurnConfig    `mapstructure:"turn"`
	IRC        IRCConfig     `mapstructure:"irc"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 58080)
	v.SetDefault("static_path", "./static")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "5s")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("max_users", 25)
	v.SetDefault("max_cameras", 10)
	v.SetDefault("captcha_ttl", "300s")
	v.SetDefault("turn.ice_transport_policy", "relay")
	v.SetDefault("irc.protocols", []string{"text.ircv3.net", "binary.ircv3.net"})
	v.SetDefault("irc.max_nick_length", 20)
	v.SetDefault("irc.reconnect_delay", 15000)
	v.SetDefault("irc.join_delay", 3000)
	v.SetDefault("irc.max_backlog", 5000)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Max users: %d\n", cfg.Mode, cfg.Port, cfg.MaxUsers)
	return &cfg, nil
}

// ClientConfig is the public configuration handed to the browser client.
func (c *Config) ClientConfig() map[string]any {
	return map[string]any{
		"version":     c.Version,
		"max_users":   c.MaxUsers,
		"max_cameras": c.MaxCameras,
		"turn":        c.Turn,
		"irc":         c.IRC,
	}
}
