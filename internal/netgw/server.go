package netgw

import (
	"net"
	"sync/atomic"

	"go.uber.org/zap"
)

// Server accepts TCP connections and creates Sessions, handing new/dead
// sessions to the pump via channels — grounded on the teacher's
// internal/net/server.go AcceptLoop/newConns/deadCh pattern.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64
	codec    Codec
	inSize   int
	outSize  int
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(bindAddr string, codec Codec, inSize, outSize int, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		codec:    codec,
		inSize:   inSize,
		outSize:  outSize,
		log:      log,
		closeCh:  make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine: accept, wrap in a Session, start
// its I/O goroutines, and publish it on NewSessions.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.codec, s.inSize, s.outSize, s.log)
		sess.onClose = s.NotifyDead
		sess.Start()
		s.log.Info("client connected", zap.Uint64("session", id), zap.String("addr", sess.RemoteAddr))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("new-connection queue full, rejecting connection")
			sess.Close()
		}
	}
}

func (s *Server) NewSessions() <-chan *Session { return s.newConns }

func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

func (s *Server) DeadSessions() <-chan uint64 { return s.deadCh }

func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }
