package qoi

import (
	"encoding/binary"
	"fmt"
)

// Magic is the 4-byte tag at offset 0 of every QOI stream.
const Magic = "qoif"

// HeaderSize is the fixed size of the preamble in bytes.
const HeaderSize = 14

// Header is the parsed 14-byte preamble. Width and height are stored
// big-endian on the wire regardless of host byte order.
type Header struct {
	magic      [4]byte
	Width      uint32
	Height     uint32
	Channels   uint8
	Colorspace uint8
}

// ParseHeader parses the fixed-size preamble from b. It performs no I/O
// and no field validation beyond the length; call Valid afterwards.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(b))
	}

	var h Header
	copy(h.magic[:], b[0:4])
	h.Width = binary.BigEndian.Uint32(b[4:8])
	h.Height = binary.BigEndian.Uint32(b[8:12])
	h.Channels = b[12]
	h.Colorspace = b[13]

	return h, nil
}

// Valid reports whether the magic, channel count and colorspace fields
// hold allowed values. Zero width or height is not rejected: a zero-area
// image is a legal stream whose opcode section is empty.
func (h Header) Valid() bool {
	if string(h.magic[:]) != Magic {
		return false
	}
	if h.Channels != 3 && h.Channels != 4 {
		return false
	}
	return h.Colorspace == 0 || h.Colorspace == 1
}
