package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kaetram/Kaetram-Open-sub002/internal/net/packet"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxFrameSize = 64 * 1024
	pingPeriod   = 25 * time.Second
)

// Session represents a single websocket connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	ID uint64
	// Token identifies the connection across logs and the handshake reply.
	Token uuid.UUID
	conn  *websocket.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan []byte // game loop reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	IP       string
	Username string // set by the login handler, game loop only

	outBuf [][]byte // buffered frames, flushed by the Output system (game loop only)

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(*Session)

	log *zap.Logger
}

// NewSession wraps conn. conn may be nil for sessions that never touch a
// socket, which is how the game loop tests drive handlers.
func NewSession(conn *websocket.Conn, id uint64, inSize, outSize int, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		Token:        uuid.New(),
		conn:         conn,
		InQueue:      make(chan []byte, inSize),
		OutQueue:     make(chan []byte, outSize),
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		closeCh:      make(chan struct{}),
	}
	if conn != nil {
		s.IP = conn.RemoteAddr().String()
	}
	s.log = log.With(zap.Uint64("session", id), zap.Stringer("token", s.Token))
	s.state.Store(int32(packet.StateHandshake))
	return s
}

// SetTimeouts overrides the read and write deadlines. Zero keeps the default.
func (s *Session) SetTimeouts(read, write time.Duration) {
	if read > 0 {
		s.readTimeout = read
	}
	if write > 0 {
		s.writeTimeout = write
	}
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a frame. It is not written to the socket until FlushOutput
// is called by the Output system. Game loop only, so no lock on outBuf.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// Pending returns how many frames wait for the next flush.
func (s *Session) Pending() int { return len(s.outBuf) }

// FlushOutput drains the output buffer to OutQueue for the writeLoop
// goroutine. Non-blocking: if OutQueue is full the session is closed.
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, closing slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts the session down. Safe to call from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed once the session shuts down.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

// readLoop pushes every binary frame onto InQueue for the game loop.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		// Blocking here only stalls this client's reader.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop writes queued frames and keeps the connection alive with pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.write(websocket.BinaryMessage, data) {
				return
			}
		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) write(kind int, data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(kind, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
