package netgw

import (
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/worldforge/worldcore/internal/op"
)

// Session represents one client connection. Network I/O runs in dedicated
// goroutines (read/write loops); world state is touched only from the pump
// goroutine, via InQueue/OutQueue — grounded on the teacher's
// internal/net/session.go.
type Session struct {
	ID   uint64
	conn net.Conn

	codec Codec

	InQueue  chan op.Operation // pump reads decoded operations from here
	OutQueue chan op.Operation // writer goroutine reads operations to send from here

	RemoteAddr string

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(id uint64)

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, codec Codec, inSize, outSize int, log *zap.Logger) *Session {
	return &Session{
		ID:         id,
		conn:       conn,
		codec:      codec,
		InQueue:    make(chan op.Operation, inSize),
		OutQueue:   make(chan op.Operation, outSize),
		RemoteAddr: conn.RemoteAddr().String(),
		closeCh:    make(chan struct{}),
		log:        log.With(zap.Uint64("session", id)),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues an operation for the writer goroutine. Non-blocking: if
// OutQueue is full the session is disconnected, the same backpressure
// policy as the teacher's Session.Send.
func (s *Session) Send(o op.Operation) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- o:
	default:
		s.log.Warn("output queue full, disconnecting slow client")
		s.Close()
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool { return s.closed.Load() }

func (s *Session) readLoop() {
	defer s.Close()
	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		o, err := s.codec.Decode(payload)
		if err != nil {
			s.log.Debug("decode error, dropping frame", zap.Error(err))
			continue
		}

		select {
		case s.InQueue <- o:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()
	for {
		select {
		case o := <-s.OutQueue:
			payload, err := s.codec.Encode(o)
			if err != nil {
				s.log.Error("encode error, dropping operation", zap.Error(err))
				continue
			}
			if err := WriteFrame(s.conn, payload); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
