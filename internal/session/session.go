// Package session runs one client connection: the I/O goroutines decode
// frames into typed messages, and the logic goroutine drains them once per
// tick through the phase handlers, the movement validator and the chat trust
// chain.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Versifine/warden/internal/chat"
	"github.com/Versifine/warden/internal/config"
	"github.com/Versifine/warden/internal/event"
	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/logger"
	"github.com/Versifine/warden/internal/movement"
	"github.com/Versifine/warden/internal/physics"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var ErrDisconnected = errors.New("session is disconnected")

// Transport is a byte stream carrying frames: a TCP connection, one end of
// net.Pipe, or a WebSocket adapter.
type Transport interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Host is the server side of a session: admission, the status document and
// the live set. Every method is called on the logic goroutine.
type Host interface {
	StatusJSON() string
	// Admit decides whether a freshly logged-in player may join. A returned
	// *kick.Reason is shown to the player.
	Admit(s *Session) error
	Joined(s *Session)
	Left(s *Session)
	IsOperator(name string) bool
}

// Env is the process-scoped context shared by every session.
type Env struct {
	Registry    *protocol.Registry
	Session     config.SessionConfig
	Chat        config.ChatConfig
	World       physics.BlockStore
	Spawn       physics.Vec3
	AllowFlight bool

	Host        Host
	Bus         *event.Bus
	Handlers    *Handlers
	Executor    chat.Executor
	Broadcaster chat.Broadcaster
	Commands    chat.CommandDispatcher
	// Decorate rewrites accepted chat before broadcast; nil keeps it as sent.
	Decorate chat.Decorator

	Now func() time.Time
	// Fatal is invoked when a local session faults. It defaults to a
	// zerolog Fatal, which exits the process.
	Fatal func(err error)
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

const (
	readBufferSize = 4096
	drainTimeout   = time.Second
	dropIncrement  = 20
	dropThreshold  = 1480
)

type inbound struct {
	msg   protocol.Message
	entry *protocol.Entry
}

type Session struct {
	id         uuid.UUID
	env        *Env
	conn       Transport
	local      bool
	remote     string
	acceptedAt time.Time

	log zerolog.Logger

	connState *protocol.ConnState
	limiter   *rate.Limiter

	in     chan inbound
	resume chan struct{}
	out    chan []byte
	done   chan struct{}

	// sendMu 保护出站阶段, 压缩阈值和 closed 标记
	sendMu       sync.Mutex
	outPhase     protocol.Phase
	outThreshold int
	closed       bool
	reason       *kick.Reason

	ioReason atomic.Pointer[kick.Reason]
	torn     bool

	// 以下只在逻辑 goroutine 上访问
	name            string
	playerID        uuid.UUID
	loginStarted    bool
	statusRequested bool
	abilities       movement.Abilities
	clientInfo      *protocol.ClientInformation

	keepAlivePending bool
	keepAliveTime    time.Time
	keepAliveID      int64
	latency          time.Duration
	lastAction       time.Time

	dropSpam    *chat.Throttler
	movement    *movement.Validator
	trust       *chat.TrustChain
	chatIndex   int32
	joinedEvent bool
}

// New wraps conn. Start launches its I/O goroutines.
func New(env *Env, conn Transport, local bool) *Session {
	id := uuid.New()
	remote := "local"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	cfg := env.Session
	s := &Session{
		id:           id,
		env:          env,
		conn:         conn,
		local:        local,
		remote:       remote,
		acceptedAt:   env.now(),
		log:          logger.Component("session").With().Str("session", id.String()).Str("remote", remote).Logger(),
		connState:    protocol.NewConnState(),
		limiter:      rate.NewLimiter(rate.Limit(cfg.PacketsPerSecond), cfg.PacketBurst),
		in:           make(chan inbound, cfg.InboundQueue),
		resume:       make(chan struct{}, 1),
		out:          make(chan []byte, cfg.OutboundQueue),
		done:         make(chan struct{}),
		outThreshold: -1,
		dropSpam:     chat.NewThrottler(dropIncrement, dropThreshold),
	}
	s.lastAction = s.acceptedAt
	return s
}

func (s *Session) Start() {
	go s.readLoop(s.log)
	go s.writeLoop()
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Local() bool { return s.local }

func (s *Session) RemoteAddr() string { return s.remote }

func (s *Session) AcceptedAt() time.Time { return s.acceptedAt }

// 下面的访问器只能在逻辑 goroutine 上调用

func (s *Session) Name() string { return s.name }

func (s *Session) PlayerID() uuid.UUID { return s.playerID }

func (s *Session) Latency() time.Duration { return s.latency }

func (s *Session) Phase() protocol.Phase {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return protocol.Closed
	}
	return s.outPhase
}

// Movement is nil until the session reaches play.
func (s *Session) Movement() *movement.Validator { return s.movement }

// Chat is nil until the session reaches play.
func (s *Session) Chat() *chat.TrustChain { return s.trust }

func (s *Session) ClientInformation() *protocol.ClientInformation { return s.clientInfo }

// Abilities implements movement.AbilitySource; the simulation keeps it
// current through SetAbilities.
func (s *Session) Abilities() movement.Abilities { return s.abilities }

func (s *Session) SetAbilities(a movement.Abilities) { s.abilities = a }

// trusted 表示这是免除速度和刷屏限制的本地所有者
func (s *Session) trusted() bool {
	return s.local && s.env.Session.TrustLocalOwner
}

// Send encodes msg for the current phase and queues it. It never blocks: a
// full queue disconnects the session.
func (s *Session) Send(msg protocol.Message) error {
	s.sendMu.Lock()
	if s.closed {
		s.sendMu.Unlock()
		return ErrDisconnected
	}
	frame, err := s.encodeLocked(msg)
	if err != nil {
		s.sendMu.Unlock()
		return err
	}
	select {
	case s.out <- frame:
		s.sendMu.Unlock()
		return nil
	default:
	}
	s.sendMu.Unlock()
	s.Disconnect(kick.OutboundOverflow)
	return ErrDisconnected
}

func (s *Session) encodeLocked(msg protocol.Message) ([]byte, error) {
	packet, err := s.env.Registry.Encode(s.outPhase, protocol.Clientbound, msg)
	if err != nil {
		return nil, err
	}
	body, err := protocol.EncodePacket(packet, s.outThreshold)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return protocol.EncodeFrame(body), nil
}

// setPhase 把收发两个方向都切到 phase, 只在逻辑 goroutine 上调用
func (s *Session) setPhase(phase protocol.Phase) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.connState.Set(phase); err != nil {
		return err
	}
	s.outPhase = phase
	return nil
}

// enableCompression 先以不压缩的格式排队 SetCompression, 再把两个方向切到新阈值
func (s *Session) enableCompression(threshold int) error {
	if err := s.Send(&protocol.SetCompression{Threshold: int32(threshold)}); err != nil {
		return err
	}
	s.sendMu.Lock()
	s.outThreshold = threshold
	s.sendMu.Unlock()
	s.connState.SetThreshold(threshold)
	return nil
}

// Disconnect sends reason on a best-effort basis and closes the session. It
// is safe from any goroutine; only the first call has any effect.
func (s *Session) Disconnect(reason *kick.Reason) {
	s.sendMu.Lock()
	if s.closed {
		s.sendMu.Unlock()
		return
	}
	if msg := disconnectMessage(s.outPhase, reason); msg != nil {
		if frame, err := s.encodeLocked(msg); err == nil {
			select {
			case s.out <- frame:
			default:
			}
		}
	}
	s.closed = true
	s.reason = reason
	s.sendMu.Unlock()

	s.log.Info().Str("reason", reason.Code).Str("message", reason.Message).Msg("session disconnected")
	close(s.done)
	// 对端不再读取时不能让写 goroutine 永远卡住
	if d, ok := s.conn.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(drainTimeout))
	}
}

func disconnectMessage(phase protocol.Phase, reason *kick.Reason) protocol.Message {
	switch phase {
	case protocol.Login:
		return &protocol.LoginDisconnect{Reason: protocol.TextComponent(reason.Message)}
	case protocol.Play:
		return &protocol.Disconnect{Reason: protocol.TextComponent(reason.Message)}
	default:
		return nil
	}
}

// Closed reports whether the session has been disconnected.
func (s *Session) Closed() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.closed
}

// Reason is the disconnect reason, or nil while the session is open.
func (s *Session) Reason() *kick.Reason {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.reason
}

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} { return s.done }

// Tick runs one logic step and reports whether the session is still live.
// Once it returns false the session has been torn down and must be dropped.
func (s *Session) Tick() bool {
	if reason := s.ioReason.Load(); reason != nil {
		s.Disconnect(reason)
	}
	if !s.Closed() {
		s.drain()
	}
	if !s.Closed() {
		s.tickPhase()
	}
	if s.Closed() {
		s.teardown()
		return false
	}
	return true
}

// drain 处理本 tick 开始前到达的消息
func (s *Session) drain() {
	n := len(s.in)
	for i := 0; i < n && !s.Closed(); i++ {
		in := <-s.in
		s.dispatch(in)
		if in.entry.Terminal {
			s.resumeReader()
		}
	}
}

func (s *Session) resumeReader() {
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

func (s *Session) teardown() {
	if s.torn {
		return
	}
	s.torn = true
	if s.trust != nil {
		s.trust.Close()
	}
	if s.joinedEvent {
		s.env.Host.Left(s)
	}
	if s.env.Bus != nil {
		reason := ""
		if r := s.Reason(); r != nil {
			reason = r.Code
		}
		s.env.Bus.Publish(event.EventSessionLeave, &event.SessionEvent{
			SessionID: s.id,
			PlayerID:  s.playerID,
			Name:      s.name,
			Remote:    s.remote,
			Reason:    reason,
		})
	}
}

// Kick disconnects the player with a custom message. Logic goroutine only.
func (s *Session) Kick(message string) {
	if message == "" {
		s.Disconnect(kick.Kicked)
		return
	}
	s.Disconnect(kick.Kicked.Withf("%s", message))
}
