package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errTextMessage = errors.New("websocket: text messages are not accepted")

// wsConn exposes binary WebSocket messages as one continuous byte stream, so
// the frame codec does not care how frames were split across messages.
//
// gorilla 只允许一个写者, SetWriteDeadline 也算写操作. 截止时间先记下来,
// 由写 goroutine 在下一次 Write 时应用; 正在阻塞的写由底层连接的截止时间打断.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader

	mu       sync.Mutex
	deadline time.Time
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			kind, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				return 0, errTextMessage
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// SetWriteDeadline is safe to call while another goroutine is in Write.
func (c *wsConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()

	raw := c.ws.UnderlyingConn()
	if err := raw.SetWriteDeadline(t); err != nil {
		return err
	}
	// 正在进行的 WriteMessage 可能在上面之后又把底层截止时间重置, 到点再设一次
	if !t.IsZero() {
		time.AfterFunc(time.Until(t), func() { _ = raw.SetWriteDeadline(t) })
	}
	return nil
}

// WebSocketHandler upgrades requests and hands the connection to a session.
func (s *Server) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}
		ws.SetReadLimit(int64(s.cfg.Session.MaxFrameSize) + 8)
		s.Accept(&wsConn{ws: ws}, false)
	})
}

// ListenWebSocket serves the WebSocket endpoint until ctx is cancelled.
func (s *Server) ListenWebSocket(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.WebSocket.Path, s.WebSocketHandler())
	srv := &http.Server{
		Addr:              s.cfg.WebSocket.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Str("path", s.cfg.WebSocket.Path).Msg("websocket listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("websocket listener: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
