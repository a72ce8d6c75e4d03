package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialView(t *testing.T) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(View))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": {"http://localhost"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestView_DecodesFrame(t *testing.T) {
	conn := dialView(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, redDot()))

	var info frameInfo
	require.NoError(t, conn.ReadJSON(&info))
	assert.Equal(t, "frame", info.Type)
	assert.Equal(t, uint32(1), info.Width)
	assert.Equal(t, uint32(1), info.Height)
	assert.Equal(t, uint8(4), info.Channels)

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, []byte{255, 0, 0, 255}, data)
}

func TestView_GzipFrame(t *testing.T) {
	conn := dialView(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, gzipped(t, redDot())))

	var info frameInfo
	require.NoError(t, conn.ReadJSON(&info))
	assert.Equal(t, "frame", info.Type)

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Len(t, data, 4)
}

func TestView_InvalidStreamReportsInBand(t *testing.T) {
	conn := dialView(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("not qoi at all")))

	var fail frameError
	require.NoError(t, conn.ReadJSON(&fail))
	assert.Equal(t, "error", fail.Type)
	assert.NotEmpty(t, fail.Error)

	// The connection survives a bad frame.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, redDot()))

	var info frameInfo
	require.NoError(t, conn.ReadJSON(&info))
	assert.Equal(t, "frame", info.Type)
}

func TestView_TextMessageRejected(t *testing.T) {
	conn := dialView(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	var fail frameError
	require.NoError(t, conn.ReadJSON(&fail))
	assert.Equal(t, "error", fail.Type)
}

func TestView_DisallowedOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(View))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": {"https://evil.example"},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
