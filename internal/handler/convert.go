// Package handler implements the HTTP and WebSocket endpoints of the
// QOI gateway: /convert re-encodes an uploaded QOI stream as PNG, and
// /view pushes the decoded framebuffer to a browser canvas.
package handler

import (
	"bufio"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/kulaginds/qoi-html5/internal/config"
	"github.com/kulaginds/qoi-html5/internal/logging"
	"github.com/kulaginds/qoi-html5/internal/qoi"
)

var errGzipDisabled = errors.New("gzip input is disabled")

// gzipMagic is the two-byte prefix of a gzip stream, used to sniff
// .qoi.gz uploads.
var gzipMagic = [2]byte{0x1F, 0x8B}

// Convert decodes the QOI stream in the request body and responds with
// a PNG rendition of it. Gzip-wrapped bodies are unwrapped transparently
// when the configuration allows it.
func Convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := loadConfig()

	body := http.MaxBytesReader(w, r.Body, cfg.Decoder.MaxRequestBytes)
	defer body.Close()

	src, err := maybeGunzip(bufio.NewReader(body), cfg.Decoder.AllowGzip)
	if err != nil {
		logging.Warn("convert: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	img, err := qoi.DecodeWithLimit(src, cfg.Decoder.MaxPixels)
	if err != nil {
		logging.Warn("convert: decode: %v", err)
		http.Error(w, err.Error(), statusFromDecodeError(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img.NRGBA()); err != nil {
		logging.Error("convert: encoding png: %v", err)
	}
}

// maybeGunzip peeks at the stream and wraps it in a gzip reader when it
// carries the gzip magic. Streams too short to sniff are passed through;
// the decoder reports the truncation with full context.
func maybeGunzip(br *bufio.Reader, allowGzip bool) (io.Reader, error) {
	head, err := br.Peek(len(gzipMagic))
	if err != nil {
		return br, nil
	}

	if head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return br, nil
	}

	if !allowGzip {
		return nil, errGzipDisabled
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("gzip input: %w", err)
	}

	return zr, nil
}

// statusFromDecodeError maps the decoder's error taxonomy onto HTTP
// status codes.
func statusFromDecodeError(err error) int {
	switch {
	case errors.Is(err, qoi.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, qoi.ErrInvalid), errors.Is(err, qoi.ErrTruncated):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// loadConfig returns the configuration the server booted with, loading
// defaults when running outside the server (tests).
func loadConfig() *config.Config {
	if cfg := config.GetGlobalConfig(); cfg != nil {
		return cfg
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("loading config: %v", err)
		return &config.Config{}
	}

	return cfg
}
