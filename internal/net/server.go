package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to websocket Sessions. New and dead
// sessions are handed to the game loop through channels.
type Server struct {
	httpSrv  *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	path     string

	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // ids of sessions that closed

	inSize       int
	outSize      int
	readTimeout  time.Duration
	writeTimeout time.Duration

	log *zap.Logger
}

// NewServer listens on bindAddr. Call Serve to start accepting.
func NewServer(bindAddr, path string, inSize, outSize int, readTimeout, writeTimeout time.Duration, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		path:         path,
		newConns:     make(chan *Session, 64),
		deadCh:       make(chan uint64, 256),
		inSize:       inSize,
		outSize:      outSize,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		log:          log,
	}
	mux := http.NewServeMux()
	mux.Handle(path, s)
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	err := s.httpSrv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeHTTP upgrades the request and queues the session for the game loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.inSize, s.outSize, s.log)
	sess.SetTimeouts(s.readTimeout, s.writeTimeout)
	sess.onClose = func(closed *Session) { s.NotifyDead(closed.ID) }

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("connection queue full, rejecting", zap.String("ip", sess.IP))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"))
		sess.Close()
		return
	}
	sess.Start()
	s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session id to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session ids.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
