package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxPending    = 4096
	DefaultSpamIncrement = 20
	DefaultSpamThreshold = 200
)

// Sender queues an outbound message on the owning session.
type Sender interface {
	Send(msg protocol.Message) error
}

type Broadcaster interface {
	BroadcastChat(msg *Message)
}

// CommandDispatcher executes a chat command for sender on the logic goroutine.
type CommandDispatcher interface {
	Dispatch(sender uuid.UUID, command string) error
}

// Decorator rewrites chat content off the logic goroutine. Returning an error
// drops the message.
type Decorator func(sender uuid.UUID, content string) (string, error)

type Options struct {
	Player        uuid.UUID
	MaxPending    int
	EnforceSecure bool
	SpamIncrement int
	SpamThreshold int
	// Exempt 表示玩家是否不受刷屏限制
	Exempt func() bool

	Out         Sender
	Executor    Executor
	Broadcaster Broadcaster
	Commands    CommandDispatcher
	Decorate    Decorator

	Now    func() time.Time
	Logger zerolog.Logger
}

// TrustChain is one session's chat gate. Handle* methods run on the logic
// goroutine; AddPending may be called from any goroutine.
type TrustChain struct {
	player        uuid.UUID
	maxPending    int
	enforceSecure bool
	exempt        func() bool

	cursor   TimestampCursor
	lastSeen *LastSeenValidator
	chain    *SignedChain
	spam     *Throttler
	pipeline *Pipeline
	chatMode int32

	out         Sender
	broadcaster Broadcaster
	commands    CommandDispatcher
	decorate    Decorator
	now         func() time.Time
	log         zerolog.Logger
}

func NewTrustChain(opts Options) *TrustChain {
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.SpamIncrement <= 0 {
		opts.SpamIncrement = DefaultSpamIncrement
	}
	if opts.SpamThreshold <= 0 {
		opts.SpamThreshold = DefaultSpamThreshold
	}
	if opts.Exempt == nil {
		opts.Exempt = func() bool { return false }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Decorate == nil {
		opts.Decorate = func(_ uuid.UUID, content string) (string, error) { return content, nil }
	}
	if opts.Executor == nil {
		opts.Executor = ExecutorFunc(func(fn func()) { fn() })
	}
	return &TrustChain{
		player:        opts.Player,
		maxPending:    opts.MaxPending,
		enforceSecure: opts.EnforceSecure,
		exempt:        opts.Exempt,
		lastSeen:      NewLastSeenValidator(protocol.LastSeenWindow),
		spam:          NewThrottler(opts.SpamIncrement, opts.SpamThreshold),
		pipeline:      NewPipeline(opts.Executor),
		out:           opts.Out,
		broadcaster:   opts.Broadcaster,
		commands:      opts.Commands,
		decorate:      opts.Decorate,
		now:           opts.Now,
		log:           opts.Logger,
	}
}

func (c *TrustChain) Close() { c.pipeline.Close() }

func (c *TrustChain) SetChatMode(mode int32) { c.chatMode = mode }

func (c *TrustChain) PendingCount() int { return c.lastSeen.PendingCount() }

func (c *TrustChain) SpamCount() int { return c.spam.Count() }

func (c *TrustChain) Chain() *SignedChain { return c.chain }

func (c *TrustChain) Tick() { c.spam.Tick() }

// HandleSessionUpdate installs a new signing key and starts a fresh chain.
func (c *TrustChain) HandleSessionUpdate(m *protocol.ChatSessionUpdate) error {
	key, err := ParsePublicKey(m.PublicKey, m.ExpiresAt)
	if err != nil {
		c.log.Warn().Err(err).Msg("rejected chat session key")
		return kick.InvalidPublicKey
	}
	if key.Expired(c.now()) {
		return kick.ExpiredPublicKey
	}
	c.chain = NewSignedChain(c.player, m.SessionID, key, c.log)
	c.log.Debug().Str("chat_session", m.SessionID.String()).Msg("chat session updated")
	return nil
}

// HandleChat runs a chat message through every check and, if it passes,
// queues it for decoration and broadcast.
func (c *TrustChain) HandleChat(m *protocol.ChatMessage) error {
	if err := ValidateText(m.Message); err != nil {
		return err
	}
	if c.chatMode == protocol.ChatModeHidden {
		return c.chatDisabled()
	}
	if c.lastSeen.PendingCount() >= c.maxPending {
		return kick.TooManyPendingChats
	}
	seen, err := c.order(m.Timestamp, m.LastSeen)
	if err != nil {
		return err
	}

	body := Body{Content: m.Message, Timestamp: time.UnixMilli(m.Timestamp), Salt: m.Salt, LastSeen: seen}
	msg, err := c.unpack(m.Signature, body)
	if err != nil {
		return err
	}
	if err := c.detectSpam(); err != nil {
		return err
	}
	c.submit(msg)
	return nil
}

// HandleCommand handles an unsigned command.
func (c *TrustChain) HandleCommand(m *protocol.ChatCommand) error {
	if err := ValidateText(m.Command); err != nil {
		return err
	}
	if c.chatMode == protocol.ChatModeHidden {
		return c.chatDisabled()
	}
	if err := c.detectSpam(); err != nil {
		return err
	}
	return c.dispatch(m.Command)
}

// HandleSignedCommand handles a command whose arguments carry signatures.
// Argument signatures advance the chain; interpreting them is left to the
// dispatcher.
func (c *TrustChain) HandleSignedCommand(m *protocol.ChatCommandSigned) error {
	if err := ValidateText(m.Command); err != nil {
		return err
	}
	if c.chatMode == protocol.ChatModeHidden {
		return c.chatDisabled()
	}
	if _, err := c.order(m.Timestamp, m.LastSeen); err != nil {
		return err
	}
	if len(m.ArgumentSignatures) > 0 {
		switch {
		case c.chain == nil && c.enforceSecure:
			return kick.MissingProfileKey
		case c.chain != nil:
			if c.chain.Key().Expired(c.now()) {
				return kick.ExpiredPublicKey
			}
			for _, arg := range m.ArgumentSignatures {
				if err := c.chain.Skip(arg.Signature); err != nil {
					return err
				}
			}
		}
	}
	if err := c.detectSpam(); err != nil {
		return err
	}
	return c.dispatch(m.Command)
}

// HandleAck 处理单独发送的确认
func (c *TrustChain) HandleAck(m *protocol.ChatAck) error {
	if err := c.lastSeen.ApplyOffset(m.Offset); err != nil {
		c.log.Warn().Err(err).Int32("offset", m.Offset).Msg("invalid chat acknowledgment")
		return kick.ChatValidationFailed
	}
	return nil
}

// AddPending records a signed message broadcast to this player. It returns
// kick.TooManyPendingChats once the client has stopped acknowledging.
func (c *TrustChain) AddPending(sig protocol.MessageSignature) error {
	if n := c.lastSeen.AddPending(sig); n > c.maxPending {
		return kick.TooManyPendingChats
	}
	return nil
}

func (c *TrustChain) order(timestamp int64, update protocol.LastSeenUpdate) ([]protocol.MessageSignature, error) {
	if !c.cursor.Advance(timestamp) {
		if c.chain != nil {
			c.chain.Break()
		}
		c.log.Warn().Int64("timestamp", timestamp).Int64("last", c.cursor.Last()).Msg("out-of-order chat")
		return nil, kick.OutOfOrderChat
	}
	seen, err := c.lastSeen.ApplyUpdate(update)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to validate chat acknowledgment")
		return nil, kick.ChatValidationFailed
	}
	return seen, nil
}

func (c *TrustChain) unpack(sig *protocol.MessageSignature, body Body) (*Message, error) {
	if c.chain == nil {
		if c.enforceSecure {
			return nil, kick.MissingProfileKey
		}
		return &Message{Link: Link{Sender: c.player}, Body: body}, nil
	}
	return c.chain.Unpack(sig, body, c.now())
}

func (c *TrustChain) detectSpam() error {
	c.spam.Increment()
	if !c.spam.UnderThreshold() && !c.exempt() {
		return kick.Spam
	}
	return nil
}

func (c *TrustChain) submit(msg *Message) {
	content := msg.Body.Content
	Append(c.pipeline,
		func() (string, error) { return c.decorate(c.player, content) },
		func(decorated string, err error) {
			if err != nil {
				c.log.Debug().Err(err).Msg("chat message dropped by decorator")
				return
			}
			if decorated != content {
				msg.Unsigned = &decorated
			}
			if c.broadcaster != nil {
				c.broadcaster.BroadcastChat(msg)
			}
		})
}

func (c *TrustChain) dispatch(command string) error {
	if c.commands == nil {
		return c.system("Unknown command: " + command)
	}
	err := c.commands.Dispatch(c.player, command)
	var reason *kick.Reason
	if err == nil || errors.As(err, &reason) {
		return err
	}
	return c.system(fmt.Sprintf("Command failed: %v", err))
}

func (c *TrustChain) chatDisabled() error {
	return c.system("Cannot send chat message. Chat is disabled in your client options.")
}

func (c *TrustChain) system(text string) error {
	if c.out == nil {
		return nil
	}
	if err := c.out.Send(&protocol.SystemChat{Content: protocol.TextComponent(text)}); err != nil {
		return fmt.Errorf("send system chat: %w", err)
	}
	return nil
}
