package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
)

// gorillaTransport adapts a *websocket.Conn to Transport. gorilla allows one
// concurrent writer, so data frames are serialised by writeMu; control frames
// go through WriteControl, which is safe alongside them.
type gorillaTransport struct {
	conn  *websocket.Conn
	clock clockwork.Clock

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newGorillaTransport(conn *websocket.Conn, clock clockwork.Clock) *gorillaTransport {
	t := &gorillaTransport{
		conn:  conn,
		clock: clock,
		done:  make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go t.keepalive()
	return t
}

func (t *gorillaTransport) WriteText(data []byte) error {
	select {
	case <-t.done:
		return ErrConnectionClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal-closure frame and closes the socket. Later calls
// return the first result.
func (t *gorillaTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// keepalive pings the peer until the transport closes. A failed ping closes
// the socket so the read pump unblocks and runs the close path.
func (t *gorillaTransport) keepalive() {
	ticker := t.clock.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.Chan():
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = t.conn.Close()
				return
			}
		}
	}
}
