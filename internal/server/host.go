package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Versifine/warden/internal/chat"
	"github.com/Versifine/warden/internal/event"
	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/Versifine/warden/internal/session"
	"github.com/google/uuid"
)

type statusDocument struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
	} `json:"players"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
}

func (s *Server) StatusJSON() string {
	var doc statusDocument
	doc.Version.Name = protocol.CurrentVersionName
	doc.Version.Protocol = protocol.CurrentProtocolVersion
	doc.Players.Max = s.cfg.Server.MaxPlayers
	doc.Players.Online = len(s.byName)
	doc.Description.Text = s.cfg.Server.MOTD
	b, err := json.Marshal(doc)
	if err != nil {
		return `{}`
	}
	return string(b)
}

// Admit kicks an older session logged in under the same name and enforces
// max_players.
func (s *Server) Admit(sess *session.Session) error {
	online := len(s.byName)
	if old, ok := s.byName[sess.Name()]; ok && old != sess {
		old.Disconnect(kick.DuplicateLogin)
		online--
	}
	if limit := s.cfg.Server.MaxPlayers; limit > 0 && online >= limit {
		return kick.ServerFull
	}
	return nil
}

func (s *Server) Joined(sess *session.Session) {
	if old, ok := s.byName[sess.Name()]; ok && old != sess {
		old.Disconnect(kick.DuplicateLogin)
	}
	s.byName[sess.Name()] = sess
	s.byPlayer[sess.PlayerID()] = sess
}

func (s *Server) Left(sess *session.Session) {
	if s.byName[sess.Name()] == sess {
		delete(s.byName, sess.Name())
	}
	if s.byPlayer[sess.PlayerID()] == sess {
		delete(s.byPlayer, sess.PlayerID())
	}
}

func (s *Server) IsOperator(name string) bool { return s.ops[name] }

// BroadcastChat delivers a player's chat to everyone in play.
func (s *Server) BroadcastChat(msg *chat.Message) {
	name := msg.Link.Sender.String()
	if sender, ok := s.byPlayer[msg.Link.Sender]; ok {
		name = sender.Name()
	}
	for _, sess := range s.players() {
		if err := sess.SendChat(msg, name); err != nil {
			s.log.Debug().Err(err).Str("player", sess.Name()).Msg("chat not delivered")
		}
	}
	s.bus.Publish(event.EventChatBroadcast,
		event.NewChatEvent(msg.Link.Sender, name, msg.Body.Content, msg.Signed(), event.SourcePlayer))
}

// broadcastSystem shows text to everyone in play.
func (s *Server) broadcastSystem(text string, source event.SourceType) {
	for _, sess := range s.players() {
		if err := sess.SendSystem(text); err != nil {
			s.log.Debug().Err(err).Str("player", sess.Name()).Msg("system message not delivered")
		}
	}
	s.bus.Publish(event.EventChatBroadcast, event.NewChatEvent(uuid.Nil, "Server", text, false, source))
}

// players 返回已加入的会话, 按名字排序
func (s *Server) players() []*session.Session {
	out := make([]*session.Session, 0, len(s.byName))
	for _, sess := range s.byName {
		if !sess.Closed() {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Command runs a player command on the logic goroutine. A returned error is
// shown to the player; a *kick.Reason disconnects them.
type Command func(s *Server, sender *session.Session, args []string) error

func (s *Server) defaultCommands() map[string]Command {
	return map[string]Command{
		"list": func(s *Server, sender *session.Session, _ []string) error {
			players := s.players()
			names := make([]string, len(players))
			for i, p := range players {
				names[i] = p.Name()
			}
			return sender.SendSystem(fmt.Sprintf("There are %d of a max of %d players online: %s",
				len(players), s.cfg.Server.MaxPlayers, strings.Join(names, ", ")))
		},
		"ping": func(s *Server, sender *session.Session, _ []string) error {
			return sender.SendSystem(fmt.Sprintf("Latency: %d ms", sender.Latency().Milliseconds()))
		},
		"me": func(s *Server, sender *session.Session, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: /me <action>")
			}
			s.broadcastSystem(fmt.Sprintf("* %s %s", sender.Name(), strings.Join(args, " ")), event.SourceCommand)
			return nil
		},
	}
}

// RegisterCommand adds or replaces a player command. Call before Run.
func (s *Server) RegisterCommand(name string, cmd Command) {
	s.commands[name] = cmd
}

// Dispatch implements chat.CommandDispatcher.
func (s *Server) Dispatch(sender uuid.UUID, command string) error {
	sess, ok := s.byPlayer[sender]
	if !ok {
		return fmt.Errorf("unknown player %s", sender)
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}
	cmd, ok := s.commands[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", fields[0])
	}
	s.log.Info().Str("player", sess.Name()).Str("command", command).Msg("command issued")
	return cmd(s, sess, fields[1:])
}
