package handler

import (
	"bufio"
	"bytes"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kulaginds/qoi-html5/internal/logging"
	"github.com/kulaginds/qoi-html5/internal/qoi"
)

const (
	webSocketReadBufferSize  = 8192
	webSocketWriteBufferSize = 8192 * 2
)

// frameInfo is the JSON message sent ahead of every RGBA frame so the
// browser can size its canvas before the binary payload arrives.
type frameInfo struct {
	Type       string `json:"type"`
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
	Channels   uint8  `json:"channels"`
	Colorspace uint8  `json:"colorspace"`
}

type frameError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// View upgrades the request to a WebSocket and serves a decode loop:
// each binary message is one QOI stream (optionally gzip-wrapped), each
// reply is a JSON info frame followed by the raw RGBA framebuffer for
// canvas putImageData. Decode failures are reported in-band and the
// connection stays open.
func View(w http.ResponseWriter, r *http.Request) {
	cfg := loadConfig()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  webSocketReadBufferSize,
		WriteBufferSize: webSocketWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isAllowedOrigin(r.Header.Get("Origin"), cfg.Security.AllowedOrigins)
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("view: upgrade websocket: %v", err)
		return
	}

	defer func() {
		if err := wsConn.Close(); err != nil {
			logging.Debug("view: closing websocket: %v", err)
		}
	}()

	wsConn.SetReadLimit(cfg.Decoder.MaxRequestBytes)

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			logging.Debug("view: reading message: %v", err)
			return
		}

		if msgType != websocket.BinaryMessage {
			if err := wsConn.WriteJSON(frameError{Type: "error", Error: "expected a binary QOI message"}); err != nil {
				return
			}
			continue
		}

		img, err := decodeMessage(data, cfg.Decoder.AllowGzip, cfg.Decoder.MaxPixels)
		if err != nil {
			logging.Warn("view: decode: %v", err)
			if err := wsConn.WriteJSON(frameError{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		info := frameInfo{
			Type:       "frame",
			Width:      img.Width,
			Height:     img.Height,
			Channels:   img.Channels,
			Colorspace: img.Colorspace,
		}
		if err := wsConn.WriteJSON(info); err != nil {
			logging.Debug("view: sending frame info: %v", err)
			return
		}
		if err := wsConn.WriteMessage(websocket.BinaryMessage, img.RawRGBA()); err != nil {
			logging.Debug("view: sending framebuffer: %v", err)
			return
		}
	}
}

func decodeMessage(data []byte, allowGzip bool, maxPixels uint64) (*qoi.Image, error) {
	src, err := maybeGunzip(bufio.NewReader(bytes.NewReader(data)), allowGzip)
	if err != nil {
		return nil, err
	}

	return qoi.DecodeWithLimit(src, maxPixels)
}
