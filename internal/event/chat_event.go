package event

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type SourceType int

const (
	SourceSystem SourceType = iota
	SourcePlayer
	SourceCommand
)

func (st SourceType) String() string {
	switch st {
	case SourceSystem:
		return "System"
	case SourcePlayer:
		return "Player"
	case SourceCommand:
		return "Command"
	default:
		return "Unknown"
	}
}

// ChatEvent is published after a message has been broadcast to every
// session in play.
type ChatEvent struct {
	Sender  uuid.UUID
	Name    string
	Message string
	Signed  bool
	Source  SourceType
}

func NewChatEvent(sender uuid.UUID, name, message string, signed bool, source SourceType) *ChatEvent {
	return &ChatEvent{
		Sender:  sender,
		Name:    name,
		Message: message,
		Signed:  signed,
		Source:  source,
	}
}

// NewChatLogger returns a handler that writes every broadcast to log.
func NewChatLogger(log zerolog.Logger) HandlerFunc {
	return func(raw any) {
		evt, ok := raw.(*ChatEvent)
		if !ok {
			log.Error().Msgf("invalid event type %T for chat logger", raw)
			return
		}
		log.Info().
			Str("name", evt.Name).
			Str("source", evt.Source.String()).
			Bool("signed", evt.Signed).
			Msg(evt.Message)
	}
}
