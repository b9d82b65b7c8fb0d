package telephony

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by writes after Close.
var ErrConnClosed = errors.New("telephony: connection closed")

// Conn wraps a provider media-stream websocket. Reads are expected from a
// single goroutine; writes are synchronized internally because
// gorilla/websocket allows only one concurrent writer.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// ReadMessage blocks until the next envelope arrives. Frames that fail to
// parse are logged and skipped rather than surfaced as errors.
func (c *Conn) ReadMessage() (*MediaMessage, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}

		var msg MediaMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[Telephony] Failed to parse frame: %v", err)
			continue
		}
		return &msg, nil
	}
}

// WriteMedia sends an audio frame for the given stream.
func (c *Conn) WriteMedia(streamSid, payload string) error {
	return c.writeJSON(&MediaMessage{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     &MediaPayload{Payload: payload},
	})
}

// WriteMark sends a playback mark for the given stream.
func (c *Conn) WriteMark(streamSid, name string) error {
	return c.writeJSON(&MediaMessage{
		Event:     EventMark,
		StreamSid: streamSid,
		Mark:      &MarkPayload{Name: name},
	})
}

// WriteClear tells the provider to discard audio buffered for the stream
// but not yet played.
func (c *Conn) WriteClear(streamSid string) error {
	return c.writeJSON(&MediaMessage{
		Event:     EventClear,
		StreamSid: streamSid,
	})
}

func (c *Conn) writeJSON(msg *MediaMessage) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Close closes the websocket with a normal-closure code. It is safe to call
// from any goroutine and more than once; a blocked ReadMessage fails with a
// disconnect error.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.writeMu.Lock()
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call terminated"))
	c.writeMu.Unlock()

	return c.ws.Close()
}

// IsDisconnect reports whether err is an expected teardown signal rather
// than a protocol failure: a normal/going-away close from the peer, or a
// read unblocked by our own Close.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
