package telephony

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connPair dials a websocket against an in-process server and returns both
// ends: the wrapped client conn under test and the raw peer.
func connPair(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	peerCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		peerCh <- ws
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	peer := <-peerCh
	t.Cleanup(func() {
		ws.Close()
		peer.Close()
	})
	return NewConn(ws), peer
}

func TestConn_ReadSkipsUnparseableFrames(t *testing.T) {
	conn, peer := connPair(t)

	require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, peer.WriteJSON(&MediaMessage{
		Event: EventMedia,
		Media: &MediaPayload{Timestamp: "120", Payload: "AAAA"},
	}))

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, EventMedia, msg.Event)
	require.NotNil(t, msg.Media)
	assert.Equal(t, "AAAA", msg.Media.Payload)
}

func TestConn_WriteMediaAndMark(t *testing.T) {
	conn, peer := connPair(t)

	require.NoError(t, conn.WriteMedia("SS1", "cGF5bG9hZA=="))
	require.NoError(t, conn.WriteMark("SS1", "responsePart"))
	require.NoError(t, conn.WriteClear("SS1"))

	var media MediaMessage
	require.NoError(t, peer.ReadJSON(&media))
	assert.Equal(t, EventMedia, media.Event)
	assert.Equal(t, "SS1", media.StreamSid)
	require.NotNil(t, media.Media)
	assert.Equal(t, "cGF5bG9hZA==", media.Media.Payload)

	var mark MediaMessage
	require.NoError(t, peer.ReadJSON(&mark))
	assert.Equal(t, EventMark, mark.Event)
	require.NotNil(t, mark.Mark)
	assert.Equal(t, "responsePart", mark.Mark.Name)

	var clear MediaMessage
	require.NoError(t, peer.ReadJSON(&clear))
	assert.Equal(t, EventClear, clear.Event)
	assert.Equal(t, "SS1", clear.StreamSid)
}

func TestConn_WriteAfterClose(t *testing.T) {
	conn, _ := connPair(t)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	err := conn.WriteMedia("SS1", "AAAA")
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_CloseUnblocksRead(t *testing.T) {
	conn, _ := connPair(t)

	readErr := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		readErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case err := <-readErr:
		assert.True(t, IsDisconnect(err), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock")
	}
}

func TestConn_PeerCloseIsDisconnect(t *testing.T) {
	conn, peer := connPair(t)

	peer.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	_, err := conn.ReadMessage()
	assert.True(t, IsDisconnect(err), "got %v", err)
}

func TestIsDisconnect(t *testing.T) {
	assert.False(t, IsDisconnect(nil))
	assert.False(t, IsDisconnect(errors.New("boom")))
	assert.True(t, IsDisconnect(&websocket.CloseError{Code: websocket.CloseGoingAway}))
}

func TestMediaPayload_TimestampMs(t *testing.T) {
	p := &MediaPayload{Timestamp: "1450"}
	ms, err := p.TimestampMs()
	require.NoError(t, err)
	assert.Equal(t, int64(1450), ms)

	p = &MediaPayload{Timestamp: "soon"}
	_, err = p.TimestampMs()
	assert.Error(t, err)
}
