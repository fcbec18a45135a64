package session

import (
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"

	"github.com/Versifine/warden/internal/event"
	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
)

// HandlerFunc handles one play message on the logic goroutine. A returned
// *kick.Reason disconnects the session with that reason; any other error
// disconnects it with kick.InternalError.
type HandlerFunc func(s *Session, msg protocol.Message) error

// Handlers 把消息类型映射到模拟层的处理器. 必须在第一个会话启动前注册完,
// 查找不加锁.
type Handlers struct {
	byType map[protocol.Type]HandlerFunc
}

func NewHandlers() *Handlers {
	return &Handlers{byType: make(map[protocol.Type]HandlerFunc)}
}

func (h *Handlers) Handle(t protocol.Type, fn HandlerFunc) {
	h.byType[t] = fn
}

func (h *Handlers) lookup(t protocol.Type) (HandlerFunc, bool) {
	if h == nil {
		return nil, false
	}
	fn, ok := h.byType[t]
	return fn, ok
}

// forward 把消息交给该类型注册的模拟层处理器
func (s *Session) forward(msg protocol.Message) error {
	fn, ok := s.env.Handlers.lookup(msg.Type())
	if !ok {
		return nil
	}
	return fn(s, msg)
}

type phaseHandler func(s *Session, msg protocol.Message) error

var builtin = map[protocol.Type]phaseHandler{
	protocol.TypeIntention:         (*Session).handleIntention,
	protocol.TypeStatusRequest:     (*Session).handleStatusRequest,
	protocol.TypePingRequest:       (*Session).handlePing,
	protocol.TypeLoginStart:        (*Session).handleLoginStart,
	protocol.TypeLoginAcknowledged: (*Session).handleLoginAcknowledged,

	protocol.TypeKeepAliveServerbound:   (*Session).handleKeepAlive,
	protocol.TypeAcceptTeleportation:    (*Session).handleTeleportConfirm,
	protocol.TypeMovePlayerPos:          (*Session).handleMove,
	protocol.TypeMovePlayerPosRot:       (*Session).handleMove,
	protocol.TypeMovePlayerRot:          (*Session).handleMove,
	protocol.TypeMovePlayerStatusOnly:   (*Session).handleMove,
	protocol.TypeMoveVehicleServerbound: (*Session).handleVehicleMove,
	protocol.TypeChat:                   (*Session).handleChat,
	protocol.TypeChatCommand:            (*Session).handleChatCommand,
	protocol.TypeChatCommandSigned:      (*Session).handleSignedCommand,
	protocol.TypeChatAck:                (*Session).handleChatAck,
	protocol.TypeChatSessionUpdate:      (*Session).handleChatSessionUpdate,
	protocol.TypeClientInformation:      (*Session).handleClientInformation,
	protocol.TypePlayerAction:           (*Session).handlePlayerAction,
	protocol.TypeSwing:                  (*Session).handleSwing,
}

// dispatch 处理一条消息, 任何失败都转成断开. 本地会话的 panic 交给 Env.Fatal.
func (s *Session) dispatch(in inbound) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic handling %s: %v", in.msg.Type(), r)
			if s.local {
				s.fatal(err)
				return
			}
			s.log.Error().Err(err).Bytes("stack", debug.Stack()).Msg("handler panicked")
			s.Disconnect(kick.InternalError)
		}
	}()

	if in.entry.Phase != s.connState.Get() {
		s.Disconnect(kick.UnexpectedMessage)
		return
	}
	var err error
	if h, ok := builtin[in.msg.Type()]; ok {
		err = h(s, in.msg)
	} else {
		err = s.forward(in.msg)
	}
	if err != nil {
		s.fault(in.msg.Type(), err)
	}
}

func (s *Session) fault(t protocol.Type, err error) {
	if errors.Is(err, ErrDisconnected) {
		return
	}
	var reason *kick.Reason
	if errors.As(err, &reason) {
		s.log.Warn().Str("message", t.String()).Str("reason", reason.Code).Msg("rejected message")
		s.Disconnect(reason)
		return
	}
	if s.local {
		s.fatal(fmt.Errorf("handle %s: %w", t, err))
		return
	}
	s.log.Error().Err(err).Str("message", t.String()).Msg("handler failed")
	s.Disconnect(kick.InternalError)
}

func (s *Session) fatal(err error) {
	s.Disconnect(kick.InternalError)
	if s.env.Fatal != nil {
		s.env.Fatal(err)
		return
	}
	s.log.Fatal().Err(err).Msg("local session faulted")
}

func (s *Session) handleIntention(msg protocol.Message) error {
	m := msg.(*protocol.Intention)
	switch m.Intent {
	case protocol.IntentStatus:
		return s.setPhase(protocol.Status)
	case protocol.IntentLogin, protocol.IntentTransfer:
		if err := s.setPhase(protocol.Login); err != nil {
			return err
		}
		if m.Intent == protocol.IntentTransfer {
			return kick.TransfersDisabled
		}
		if m.ProtocolVersion != protocol.CurrentProtocolVersion {
			s.log.Info().Int32("version", m.ProtocolVersion).Msg("version mismatch")
			if m.ProtocolVersion < oldestModernProtocol {
				return kick.OutdatedClient.Withf("Outdated client! Please use %s", protocol.CurrentVersionName)
			}
			return kick.IncompatibleClient.Withf("Incompatible client! Please use %s", protocol.CurrentVersionName)
		}
		return nil
	default:
		return kick.InvalidIntent
	}
}

// oldestModernProtocol 之前的客户端显示不了版本不兼容的提示
const oldestModernProtocol = 754

func (s *Session) handleStatusRequest(protocol.Message) error {
	if s.statusRequested {
		return kick.UnexpectedMessage
	}
	s.statusRequested = true
	return s.Send(&protocol.StatusResponse{JSON: s.env.Host.StatusJSON()})
}

func (s *Session) handlePing(msg protocol.Message) error {
	if err := s.Send(&protocol.PongResponse{Time: msg.(*protocol.PingRequest).Time}); err != nil {
		return err
	}
	s.Disconnect(kick.ClientQuit)
	return nil
}

var validUsername = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

func (s *Session) handleLoginStart(msg protocol.Message) error {
	m := msg.(*protocol.LoginStart)
	if s.loginStarted {
		return kick.UnexpectedMessage
	}
	s.loginStarted = true
	if !validUsername.MatchString(m.Username) {
		return kick.InvalidUsername
	}
	s.name = m.Username
	s.playerID = protocol.GenerateOfflineUUID(m.Username)
	s.log = s.log.With().Str("player", s.name).Logger()

	if err := s.env.Host.Admit(s); err != nil {
		return err
	}
	if t := s.env.Session.CompressionThreshold; t >= 0 {
		if err := s.enableCompression(t); err != nil {
			return err
		}
	}
	return s.Send(&protocol.LoginSuccess{UUID: s.playerID, Username: s.name, Properties: []protocol.Property{}})
}

func (s *Session) handleLoginAcknowledged(protocol.Message) error {
	if !s.loginStarted || s.name == "" {
		return kick.UnexpectedMessage
	}
	if err := s.setPhase(protocol.Play); err != nil {
		return err
	}
	if err := s.startPlay(); err != nil {
		return err
	}
	s.joinedEvent = true
	s.env.Host.Joined(s)
	if s.env.Bus != nil {
		s.env.Bus.Publish(event.EventSessionJoin, &event.SessionEvent{
			SessionID: s.id,
			PlayerID:  s.playerID,
			Name:      s.name,
			Remote:    s.remote,
		})
	}
	s.log.Info().Msg("player joined")
	return nil
}
