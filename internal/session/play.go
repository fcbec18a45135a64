package session

import (
	"github.com/Versifine/warden/internal/chat"
	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/movement"
	"github.com/Versifine/warden/internal/protocol"
)

func (s *Session) startPlay() error {
	now := s.env.now()
	s.keepAliveTime = now
	s.lastAction = now

	s.movement = movement.New(s, movement.Options{
		World:       s.env.World,
		Player:      s,
		Position:    s.env.Spawn,
		Exempt:      s.trusted(),
		AllowFlight: s.env.AllowFlight,
		Logger:      s.log.With().Str("component", "movement").Logger(),
	})
	s.trust = chat.NewTrustChain(chat.Options{
		Player:        s.playerID,
		MaxPending:    s.env.Chat.MaxPending,
		EnforceSecure: s.env.Chat.EnforceSecureChat,
		SpamIncrement: s.env.Chat.SpamIncrement,
		SpamThreshold: s.env.Chat.SpamThreshold,
		Exempt:        s.chatExempt,
		Out:           s,
		Executor:      s.env.Executor,
		Broadcaster:   s.env.Broadcaster,
		Commands:      s.env.Commands,
		Decorate:      s.env.Decorate,
		Now:           s.env.Now,
		Logger:        s.log.With().Str("component", "chat").Logger(),
	})
	return s.movement.Teleport(s.env.Spawn, 0, 0)
}

func (s *Session) chatExempt() bool {
	return s.trusted() || s.env.Host.IsOperator(s.name)
}

// tickPhase 执行当前阶段每个 tick 的兜底检查
func (s *Session) tickPhase() {
	now := s.env.now()
	if s.connState.Get() != protocol.Play {
		// 握手, 状态和登录阶段没有心跳, 只能靠总时长兜底
		if now.Sub(s.acceptedAt) > s.env.Session.LoginTimeout {
			s.Disconnect(kick.SlowLogin)
		}
		return
	}

	if now.Sub(s.keepAliveTime) >= s.env.Session.KeepAliveInterval {
		if s.keepAlivePending {
			s.Disconnect(kick.Timeout)
			return
		}
		s.keepAlivePending = true
		s.keepAliveTime = now
		s.keepAliveID = now.UnixMilli()
		if err := s.Send(&protocol.KeepAlive{KeepAliveID: s.keepAliveID, Clientbound: true}); err != nil {
			return
		}
	}

	if idle := s.env.Session.IdleTimeout; idle > 0 && now.Sub(s.lastAction) > idle {
		s.Disconnect(kick.Idling)
		return
	}

	s.dropSpam.Tick()
	s.trust.Tick()
	if err := s.movement.Tick(); err != nil {
		s.fault(protocol.TypeUnknown, err)
	}
}

func (s *Session) resetIdle() {
	s.lastAction = s.env.now()
}

func (s *Session) handleKeepAlive(msg protocol.Message) error {
	m := msg.(*protocol.KeepAlive)
	if !s.keepAlivePending || m.KeepAliveID != s.keepAliveID {
		if s.trusted() {
			return nil
		}
		return kick.Timeout
	}
	s.keepAlivePending = false
	elapsed := s.env.now().Sub(s.keepAliveTime)
	// 平滑处理, 和客户端的延迟条一致
	s.latency = (s.latency*3 + elapsed) / 4
	return nil
}

func (s *Session) handleTeleportConfirm(msg protocol.Message) error {
	return s.movement.HandleTeleportConfirm(msg.(*protocol.TeleportConfirm).TeleportID)
}

func (s *Session) handleMove(msg protocol.Message) error {
	m := msg.(*protocol.MovePlayer)
	before := s.movement.Position()
	yaw, pitch := s.movement.Rotation()
	if err := s.movement.HandleMove(m); err != nil {
		return err
	}
	afterYaw, afterPitch := s.movement.Rotation()
	if s.movement.Position() != before || afterYaw != yaw || afterPitch != pitch {
		s.resetIdle()
	}
	return s.forward(msg)
}

func (s *Session) handleVehicleMove(msg protocol.Message) error {
	if err := s.movement.HandleVehicleMove(msg.(*protocol.MoveVehicle)); err != nil {
		return err
	}
	return s.forward(msg)
}

func (s *Session) handleChat(msg protocol.Message) error {
	s.resetIdle()
	return s.trust.HandleChat(msg.(*protocol.ChatMessage))
}

func (s *Session) handleChatCommand(msg protocol.Message) error {
	s.resetIdle()
	return s.trust.HandleCommand(msg.(*protocol.ChatCommand))
}

func (s *Session) handleSignedCommand(msg protocol.Message) error {
	s.resetIdle()
	return s.trust.HandleSignedCommand(msg.(*protocol.ChatCommandSigned))
}

func (s *Session) handleChatAck(msg protocol.Message) error {
	return s.trust.HandleAck(msg.(*protocol.ChatAck))
}

func (s *Session) handleChatSessionUpdate(msg protocol.Message) error {
	return s.trust.HandleSessionUpdate(msg.(*protocol.ChatSessionUpdate))
}

func (s *Session) handleClientInformation(msg protocol.Message) error {
	m := msg.(*protocol.ClientInformation)
	s.clientInfo = m
	s.trust.SetChatMode(m.ChatMode)
	return s.forward(msg)
}

func (s *Session) handlePlayerAction(msg protocol.Message) error {
	m := msg.(*protocol.PlayerAction)
	s.resetIdle()
	if m.IsDrop() && !s.abilities.Spectator {
		s.dropSpam.Increment()
		if !s.dropSpam.UnderThreshold() {
			s.log.Debug().Int("count", s.dropSpam.Count()).Msg("suppressed item drop")
			return nil
		}
	}
	return s.forward(msg)
}

func (s *Session) handleSwing(msg protocol.Message) error {
	s.resetIdle()
	return s.forward(msg)
}

// SendChat delivers a broadcast chat message and tracks its signature as
// pending acknowledgment.
func (s *Session) SendChat(msg *chat.Message, senderName string) error {
	if s.trust == nil {
		return ErrDisconnected
	}
	err := s.Send(&protocol.PlayerChat{
		GlobalIndex:      s.chatIndex,
		SenderUUID:       msg.Link.Sender,
		Index:            msg.Link.Index,
		Signature:        msg.Signature,
		PlainMessage:     msg.Body.Content,
		Timestamp:        msg.Body.Timestamp.UnixMilli(),
		Salt:             msg.Body.Salt,
		PreviousMessages: msg.Body.LastSeen,
		UnsignedContent:  msg.Unsigned,
		NetworkName:      protocol.TextComponent(senderName),
	})
	if err != nil {
		return err
	}
	s.chatIndex++
	if msg.Signature != nil {
		if err := s.trust.AddPending(*msg.Signature); err != nil {
			s.fault(protocol.TypePlayerChat, err)
			return err
		}
	}
	return nil
}

// SendSystem shows text in the player's chat.
func (s *Session) SendSystem(text string) error {
	return s.Send(&protocol.SystemChat{Content: protocol.TextComponent(text)})
}
