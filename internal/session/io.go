package session

import (
	"errors"
	"io"
	"net"

	"github.com/Versifine/warden/internal/kick"
	"github.com/Versifine/warden/internal/protocol"
	"github.com/rs/zerolog"
)

// readLoop 在 I/O goroutine 上把字节流解码成消息. 它不碰任何逻辑状态,
// 致命错误只记到 ioReason, 由下一次 Tick 处理.
func (s *Session) readLoop(log zerolog.Logger) {
	dec := protocol.NewFrameDecoder(s.env.Session.MaxFrameSize)
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			if reason := s.decodeFrames(dec, log); reason != nil {
				s.fail(reason)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				log.Debug().Err(err).Msg("read failed")
			}
			s.fail(kick.ClientQuit)
			return
		}
	}
}

// decodeFrames 投递 dec 里所有完整的帧. 遇到 terminal 消息后等逻辑
// goroutine 切换完阶段再继续.
func (s *Session) decodeFrames(dec *protocol.FrameDecoder, log zerolog.Logger) *kick.Reason {
	for {
		frame, ok, err := dec.Next()
		if err != nil {
			log.Warn().Err(err).Msg("bad frame")
			return frameReason(err)
		}
		if !ok {
			return nil
		}
		if !s.local && !s.limiter.Allow() {
			return kick.ExceededPacketRate
		}

		packet, err := protocol.DecodePacket(frame, s.connState.GetThreshold(), s.env.Session.MaxFrameSize)
		if err != nil {
			log.Warn().Err(err).Msg("bad packet")
			return frameReason(err)
		}
		msg, entry, err := s.env.Registry.Decode(s.connState.Get(), protocol.Serverbound, packet)
		if err != nil {
			if errors.Is(err, protocol.ErrSkippable) {
				log.Debug().Err(err).Msg("dropped malformed message")
				continue
			}
			log.Warn().Err(err).Int32("id", packet.ID).Str("phase", s.connState.Get().String()).Msg("undecodable message")
			return frameReason(err)
		}

		select {
		case s.in <- inbound{msg: msg, entry: entry}:
		case <-s.done:
			return nil
		}
		if entry.Terminal {
			select {
			case <-s.resume:
			case <-s.done:
				return nil
			}
		}
	}
}

func frameReason(err error) *kick.Reason {
	switch {
	case errors.Is(err, protocol.ErrPacketTooLarge):
		return kick.FrameTooLarge
	case errors.Is(err, protocol.ErrUnknownMessageID):
		return kick.UnknownMessageID
	default:
		return kick.MalformedFrame
	}
}

// fail 记录 I/O 侧放弃的原因, 只保留第一个
func (s *Session) fail(reason *kick.Reason) {
	s.ioReason.CompareAndSwap(nil, reason)
}

// writeLoop 发送队列里的帧. Disconnect 之后最多再花 drainTimeout 把已排队的
// 帧写完, 然后关闭连接.
func (s *Session) writeLoop() {
	defer s.conn.Close()
	for {
		select {
		case frame := <-s.out:
			if _, err := s.conn.Write(frame); err != nil {
				s.fail(kick.ClientQuit)
				<-s.done
				return
			}
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Session) flush() {
	for {
		select {
		case frame := <-s.out:
			if _, err := s.conn.Write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
