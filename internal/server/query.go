package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Versifine/warden/internal/event"
	"github.com/Versifine/warden/internal/session"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionInfo is a copy of one session's state taken on the logic goroutine.
type SessionInfo struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name,omitempty"`
	PlayerID     *uuid.UUID `json:"player_id,omitempty"`
	Remote       string     `json:"remote"`
	Local        bool       `json:"local"`
	Phase        string     `json:"phase"`
	Operator     bool       `json:"operator"`
	LatencyMS    int64      `json:"latency_ms"`
	AcceptedAt   time.Time  `json:"accepted_at"`
	Position     []float64  `json:"position,omitempty"`
	PendingChats int        `json:"pending_chats"`
}

func (s *Server) describe(sess *session.Session) SessionInfo {
	info := SessionInfo{
		ID:         sess.ID(),
		Name:       sess.Name(),
		Remote:     sess.RemoteAddr(),
		Local:      sess.Local(),
		Phase:      sess.Phase().String(),
		Operator:   sess.Name() != "" && s.ops[sess.Name()],
		LatencyMS:  sess.Latency().Milliseconds(),
		AcceptedAt: sess.AcceptedAt(),
	}
	if info.Name != "" {
		id := sess.PlayerID()
		info.PlayerID = &id
	}
	if mv := sess.Movement(); mv != nil {
		pos := mv.Position()
		info.Position = []float64{pos.X, pos.Y, pos.Z}
	}
	if tc := sess.Chat(); tc != nil {
		info.PendingChats = tc.PendingCount()
	}
	return info
}

// call 在逻辑 goroutine 上执行 fn 并等待结果
func (s *Server) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	s.Execute(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sessions lists every live session ordered by accept time.
func (s *Server) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var out []SessionInfo
	err := s.call(ctx, func() error {
		out = make([]SessionInfo, 0, len(s.live))
		for _, sess := range s.live {
			out = append(out, s.describe(sess))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcceptedAt.Before(out[j].AcceptedAt) })
	return out, nil
}

// Session looks a session up by session id, player id or player name.
func (s *Server) Session(ctx context.Context, target string) (SessionInfo, error) {
	var info SessionInfo
	err := s.call(ctx, func() error {
		sess := s.find(target)
		if sess == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, target)
		}
		info = s.describe(sess)
		return nil
	})
	return info, err
}

// Kick disconnects the target with message, or the default kick text when
// message is empty.
func (s *Server) Kick(ctx context.Context, target, message string) error {
	return s.call(ctx, func() error {
		sess := s.find(target)
		if sess == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, target)
		}
		sess.Kick(message)
		return nil
	})
}

// SetOperator grants or revokes operator status by player name.
func (s *Server) SetOperator(ctx context.Context, name string, op bool) error {
	return s.call(ctx, func() error {
		if op {
			s.ops[name] = true
		} else {
			delete(s.ops, name)
		}
		return nil
	})
}

// Say broadcasts a system message from the server.
func (s *Server) Say(ctx context.Context, text string) error {
	return s.call(ctx, func() error {
		s.broadcastSystem("[Server] "+text, event.SourceSystem)
		return nil
	})
}

func (s *Server) find(target string) *session.Session {
	if id, err := uuid.Parse(target); err == nil {
		if sess, ok := s.live[id]; ok {
			return sess
		}
		if sess, ok := s.byPlayer[id]; ok {
			return sess
		}
		return nil
	}
	if sess, ok := s.byName[target]; ok {
		return sess
	}
	return nil
}
