package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connWrapper serializes writers; gorilla connections allow one concurrent writer.
type connWrapper struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mutex        sync.Mutex
}

func newConnWrapper(c *websocket.Conn, writeTimeout time.Duration) *connWrapper {
	return &connWrapper{conn: c, writeTimeout: writeTimeout}
}

func (w *connWrapper) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteJSON(v)
}

func (w *connWrapper) Ping() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

// CloseWith sends a close frame before closing the socket.
func (w *connWrapper) CloseWith(code int, text string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(w.writeTimeout))
	return w.conn.Close()
}

func (w *connWrapper) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}
