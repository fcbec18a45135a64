package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Versifine/warden/internal/world"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Err joins every error, or returns nil when the config is valid.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validatePort("listen.port", cfg.Listen.Port, result)
	if cfg.WebSocket.Enabled {
		validatePort("websocket.port", cfg.WebSocket.Port, result)
		if !strings.HasPrefix(cfg.WebSocket.Path, "/") {
			result.AddError("websocket.path", "must start with /")
		}
		if cfg.WebSocket.Addr() == cfg.Listen.Addr() {
			result.AddError("websocket.port", "must differ from listen.port")
		}
	}
	if cfg.Admin.Enabled {
		validatePort("admin.port", cfg.Admin.Port, result)
		if cfg.Admin.Host != "127.0.0.1" && cfg.Admin.Host != "localhost" {
			result.AddWarning("admin.host", "admin API has no authentication and is reachable off-host")
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result.AddError("logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		result.AddError("logging.format", fmt.Sprintf("unknown format %q", cfg.Logging.Format))
	}

	validateSession(&cfg.Session, result)
	validateChat(&cfg.Chat, result)

	if cfg.Server.TickRate < 1 || cfg.Server.TickRate > 100 {
		result.AddError("server.tick_rate", "must be between 1 and 100")
	} else if cfg.Server.TickRate != 20 {
		result.AddWarning("server.tick_rate", "movement and chat limits are tuned for 20 ticks per second")
	}
	if cfg.Server.MaxPlayers < 1 {
		result.AddError("server.max_players", "must be at least 1")
	}

	bounds, ok := world.VanillaDimensionBounds(cfg.World.Dimension)
	if !ok {
		result.AddError("world.dimension", fmt.Sprintf("unknown dimension %q", cfg.World.Dimension))
	} else if !bounds.Contains(cfg.World.FloorY) {
		result.AddError("world.floor_y", fmt.Sprintf("outside %s build height", cfg.World.Dimension))
	}

	return result
}

func validatePort(field string, port int, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port %d", port))
	}
}

func validateSession(s *SessionConfig, result *ValidationResult) {
	if s.KeepAliveInterval <= 0 {
		result.AddError("session.keep_alive_interval", "must be positive")
	}
	if s.LoginTimeout <= 0 {
		result.AddError("session.login_timeout", "must be positive")
	}
	if s.IdleTimeout < 0 {
		result.AddError("session.idle_timeout", "must not be negative")
	}
	if s.InboundQueue < 1 {
		result.AddError("session.inbound_queue", "must be at least 1")
	}
	if s.OutboundQueue < 1 {
		result.AddError("session.outbound_queue", "must be at least 1")
	}
	if s.MaxFrameSize < 1024 {
		result.AddError("session.max_frame_size", "must be at least 1024")
	}
	if s.CompressionThreshold >= s.MaxFrameSize {
		result.AddWarning("session.compression_threshold", "threshold above max_frame_size disables compression")
	}
	if s.PacketsPerSecond <= 0 {
		result.AddError("session.packets_per_second", "must be positive")
	}
	if s.PacketBurst < 1 {
		result.AddError("session.packet_burst", "must be at least 1")
	}
}

func validateChat(c *ChatConfig, result *ValidationResult) {
	if c.MaxPending < 1 {
		result.AddError("chat.max_pending", "must be at least 1")
	}
	if c.SpamIncrement < 1 {
		result.AddError("chat.spam_increment", "must be at least 1")
	}
	if c.SpamThreshold < c.SpamIncrement {
		result.AddError("chat.spam_threshold", "must be at least spam_increment")
	}
}
