package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
	Session   SessionConfig   `yaml:"session"`
	Chat      ChatConfig      `yaml:"chat"`
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (l ListenConfig) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

func (w WebSocketConfig) Addr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}

type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

func (a AdminConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SessionConfig struct {
	KeepAliveInterval    time.Duration `yaml:"keep_alive_interval"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	LoginTimeout         time.Duration `yaml:"login_timeout"`
	InboundQueue         int           `yaml:"inbound_queue"`
	OutboundQueue        int           `yaml:"outbound_queue"`
	CompressionThreshold int           `yaml:"compression_threshold"`
	MaxFrameSize         int           `yaml:"max_frame_size"`
	PacketsPerSecond     float64       `yaml:"packets_per_second"`
	PacketBurst          int           `yaml:"packet_burst"`
	// TrustLocalOwner exempts the loopback session from movement and spam
	// limits.
	TrustLocalOwner bool `yaml:"trust_local_owner"`
}

type ChatConfig struct {
	EnforceSecureChat bool `yaml:"enforce_secure_chat"`
	MaxPending        int  `yaml:"max_pending"`
	SpamIncrement     int  `yaml:"spam_increment"`
	SpamThreshold     int  `yaml:"spam_threshold"`
}

type ServerConfig struct {
	TickRate    int      `yaml:"tick_rate"`
	MOTD        string   `yaml:"motd"`
	MaxPlayers  int      `yaml:"max_players"`
	Operators   []string `yaml:"operators"`
	AllowFlight bool     `yaml:"allow_flight"`
}

type WorldConfig struct {
	Dimension string     `yaml:"dimension"`
	FloorY    int        `yaml:"floor_y"`
	Spawn     [3]float64 `yaml:"spawn"`
}

func Default() *Config {
	return &Config{
		Listen:    ListenConfig{Host: "0.0.0.0", Port: 25565},
		WebSocket: WebSocketConfig{Host: "0.0.0.0", Port: 25566, Path: "/ws"},
		Admin:     AdminConfig{Host: "127.0.0.1", Port: 8080},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Session: SessionConfig{
			KeepAliveInterval:    15 * time.Second,
			LoginTimeout:         30 * time.Second,
			InboundQueue:         1024,
			OutboundQueue:        1024,
			CompressionThreshold: -1,
			MaxFrameSize:         2097152,
			PacketsPerSecond:     500,
			PacketBurst:          1000,
			TrustLocalOwner:      true,
		},
		Chat: ChatConfig{
			MaxPending:    4096,
			SpamIncrement: 20,
			SpamThreshold: 200,
		},
		Server: ServerConfig{
			TickRate:   20,
			MOTD:       "A Warden server",
			MaxPlayers: 20,
		},
		World: WorldConfig{
			Dimension: "minecraft:overworld",
			FloorY:    63,
			Spawn:     [3]float64{0.5, 64, 0.5},
		},
	}
}

// Load reads path over the defaults and validates the result. Warnings are
// returned alongside a valid config.
func Load(path string) (*Config, *ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	result := Validate(cfg)
	if !result.IsValid() {
		return nil, result, result.Err()
	}
	return cfg, result, nil
}
