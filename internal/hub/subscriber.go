package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hexclash/server/internal/net/proto"
)

const writeWait = 10 * time.Second

// Conn is the slice of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type deadlineConn interface {
	SetWriteDeadline(t time.Time) error
}

// Subscriber is one observer session. Writes are serialised so the
// broadcast fan-out and the session's own replies never interleave.
type Subscriber struct {
	id    int64
	conn  Conn
	codec proto.Codec
	mu    sync.Mutex
}

// ID returns the combatant the session is bound to.
func (s *Subscriber) ID() int64 {
	return s.id
}

// Codec returns the session's wire codec.
func (s *Subscriber) Codec() proto.Codec {
	return s.codec
}

// Send encodes frame with the session codec and writes it. It returns the
// number of bytes written.
func (s *Subscriber) Send(frame any) (int, error) {
	data, err := s.codec.Marshal(frame)
	if err != nil {
		return 0, err
	}
	return len(data), s.write(data)
}

func (s *Subscriber) write(data []byte) error {
	messageType := websocket.TextMessage
	if s.codec.Binary() {
		messageType = websocket.BinaryMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if dc, ok := s.conn.(deadlineConn); ok {
		dc.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return s.conn.WriteMessage(messageType, data)
}

// Close sends a close frame with reason and closes the connection.
func (s *Subscriber) Close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	s.conn.Close()
}
