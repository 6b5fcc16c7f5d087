// Package wstest provides a mock robot-control server for tests. It
// accepts WebSocket connections, records inbound text frames, and can
// push text or a close frame back to the connected client.
package wstest

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Server is an in-process WebSocket server backed by httptest.
type Server struct {
	httpSrv *httptest.Server
	// URL is the ws:// address clients should dial.
	URL string

	mu    sync.Mutex
	conns []net.Conn

	messages chan string
	wg       sync.WaitGroup
}

// NewServer starts a mock server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		messages: make(chan string, 16),
	}
	s.httpSrv = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = "ws" + strings.TrimPrefix(s.httpSrv.URL, "http")
	return s
}

// Close shuts the server down and releases all connections.
func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
	s.httpSrv.Close()
	s.wg.Wait()
}

// ConnCount returns how many connections the server has accepted since
// it started, including since-closed ones.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitForConnCount polls until the accepted-connection count reaches n
// or the timeout elapses.
func (s *Server) WaitForConnCount(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.ConnCount() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.ConnCount() >= n
}

// NextMessage returns the next text frame received from any client, or
// false if none arrives within the timeout.
func (s *Server) NextMessage(timeout time.Duration) (string, bool) {
	select {
	case msg := <-s.messages:
		return msg, true
	case <-time.After(timeout):
		return "", false
	}
}

// SendText pushes a text frame to the most recently accepted client.
func (s *Server) SendText(text string) error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	return wsutil.WriteServerText(conn, []byte(text))
}

// CloseActive performs a server-initiated graceful close of the most
// recently accepted connection.
func (s *Server) CloseActive() error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	if err := ws.WriteFrame(conn, frame); err != nil {
		_ = conn.Close()
		return err
	}
	// Give the peer a moment to read the close frame before the TCP
	// teardown. The read goroutine may close the conn first when it
	// sees the client's close reply, so a double-close is not an error.
	time.Sleep(10 * time.Millisecond)
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) activeConn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil, net.ErrClosed
	}
	return s.conns[len(s.conns)-1], nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.read(conn)
}

func (s *Server) read(conn net.Conn) {
	defer s.wg.Done()
	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			_ = conn.Close()
			return
		}
		if op == ws.OpText {
			select {
			case s.messages <- string(data):
			default:
			}
		}
	}
}
