package server

import (
	"context"
	"errors"
	"net"
)

// ListenTCP accepts game connections on the configured address until ctx is
// cancelled.
func (s *Server) ListenTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln and closes it when ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("listener stopped")
				return nil
			}
			s.log.Error().Err(err).Msg("accept failed")
			return err
		}
		// 关掉 Nagle, 小帧不要攒批
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		s.Accept(conn, false)
	}
}
