// Package server accepts connections, owns the live session set and drives
// the logic goroutine: a fixed-rate tick that runs queued tasks and ticks
// every session.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Versifine/warden/internal/chat"
	"github.com/Versifine/warden/internal/config"
	"github.com/Versifine/warden/internal/event"
	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/logger"
	"github.com/Versifine/warden/internal/physics"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/Versifine/warden/internal/session"
	"github.com/Versifine/warden/internal/world"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg *config.Config
	env *session.Env
	log zerolog.Logger

	bus      *event.Bus
	handlers *session.Handlers
	world    *world.BlockStore

	// taskMu 保护 tasks 和 incoming, 只有它们会在逻辑 goroutine 之外访问
	taskMu   sync.Mutex
	tasks    []func()
	incoming []*session.Session

	// 以下只在逻辑 goroutine 上访问
	live     map[uuid.UUID]*session.Session
	byName   map[string]*session.Session
	byPlayer map[uuid.UUID]*session.Session
	ops      map[string]bool
	commands map[string]Command
}

// Option customises a Server before it starts.
type Option func(*Server)

// WithClock replaces time.Now for sessions and the chat trust chain.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.env.Now = now }
}

// WithChatDecorator rewrites player chat off the logic goroutine before it is
// broadcast, e.g. for filtering. Returning an error drops the message.
func WithChatDecorator(fn chat.Decorator) Option {
	return func(s *Server) { s.env.Decorate = fn }
}

// WithFatal replaces the handler invoked when a local session faults.
func WithFatal(fn func(error)) Option {
	return func(s *Server) { s.env.Fatal = fn }
}

func New(cfg *config.Config, opts ...Option) (*Server, error) {
	store, err := world.NewFlatBlockStore(cfg.World.Dimension, cfg.World.FloorY)
	if err != nil {
		return nil, fmt.Errorf("create world: %w", err)
	}
	s := &Server{
		cfg:      cfg,
		log:      logger.Component("server"),
		bus:      event.NewBus(),
		handlers: session.NewHandlers(),
		world:    store,
		live:     make(map[uuid.UUID]*session.Session),
		byName:   make(map[string]*session.Session),
		byPlayer: make(map[uuid.UUID]*session.Session),
		ops:      make(map[string]bool),
	}
	for _, name := range cfg.Server.Operators {
		s.ops[name] = true
	}
	s.commands = s.defaultCommands()
	s.env = &session.Env{
		Registry:    protocol.NewRegistry(),
		Session:     cfg.Session,
		Chat:        cfg.Chat,
		World:       store,
		Spawn:       physics.Vec3{X: cfg.World.Spawn[0], Y: cfg.World.Spawn[1], Z: cfg.World.Spawn[2]},
		AllowFlight: cfg.Server.AllowFlight,
		Host:        s,
		Bus:         s.bus,
		Handlers:    s.handlers,
		Executor:    s,
		Broadcaster: s,
		Commands:    s,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Bus carries session.join, session.leave and chat.broadcast events.
func (s *Server) Bus() *event.Bus { return s.bus }

// Handlers is where the simulation registers play message handlers. Register
// before Run.
func (s *Server) Handlers() *session.Handlers { return s.handlers }

// World is the block store movement is validated against.
func (s *Server) World() *world.BlockStore { return s.world }

// Execute queues fn for the logic goroutine. It never blocks.
func (s *Server) Execute(fn func()) {
	s.taskMu.Lock()
	s.tasks = append(s.tasks, fn)
	s.taskMu.Unlock()
}

// Run ticks until ctx is cancelled, then disconnects everyone.
func (s *Server) Run(ctx context.Context) error {
	rate := s.cfg.Server.TickRate
	if rate <= 0 {
		rate = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	s.log.Info().Int("tick_rate", rate).Msg("logic loop started")
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.log.Info().Msg("logic loop stopped")
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) tick() {
	s.taskMu.Lock()
	tasks := s.tasks
	s.tasks = nil
	incoming := s.incoming
	s.incoming = nil
	s.taskMu.Unlock()

	for _, sess := range incoming {
		s.live[sess.ID()] = sess
	}
	for _, fn := range tasks {
		s.runTask(fn)
	}
	for id, sess := range s.live {
		if !sess.Tick() {
			delete(s.live, id)
		}
	}
}

func (s *Server) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("logic task panicked")
		}
	}()
	fn()
}

func (s *Server) shutdown() {
	s.taskMu.Lock()
	incoming := s.incoming
	s.incoming = nil
	s.taskMu.Unlock()
	for _, sess := range incoming {
		s.live[sess.ID()] = sess
	}
	for id, sess := range s.live {
		sess.Disconnect(kick.ServerClosing)
		sess.Tick()
		delete(s.live, id)
	}
}

// Accept wraps conn in a session that joins the live set on the next tick.
func (s *Server) Accept(conn session.Transport, local bool) *session.Session {
	sess := session.New(s.env, conn, local)
	sess.Start()
	s.taskMu.Lock()
	s.incoming = append(s.incoming, sess)
	s.taskMu.Unlock()
	s.log.Info().Str("session", sess.ID().String()).Str("remote", sess.RemoteAddr()).Bool("local", local).Msg("connection accepted")
	return sess
}

// Loopback opens an in-process session flagged local and returns the client
// end of the pipe.
func (s *Server) Loopback() (net.Conn, *session.Session) {
	server, client := net.Pipe()
	return client, s.Accept(loopbackConn{server}, true)
}

// loopbackConn 给本地管道一个固定的地址
type loopbackConn struct {
	net.Conn
}

func (loopbackConn) RemoteAddr() net.Addr { return loopbackAddr{} }

type loopbackAddr struct{}

func (loopbackAddr) Network() string { return "pipe" }

func (loopbackAddr) String() string { return "local" }
