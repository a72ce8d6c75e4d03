// Package qoi implements a decoder for the QOI ("Quite OK Image") format:
// a 14-byte header, a stream of variable-length opcodes, and a fixed
// 8-byte end marker, reconstructing a width*height RGBA pixel grid.
package qoi

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// DefaultMaxPixels caps how many pixels a plain Decode call will
// allocate. It matches the 400M-pixel sanity limit used by the
// reference C implementation.
const DefaultMaxPixels = 400_000_000

// endMarker terminates every stream: seven zero bytes then 0x01.
var endMarker = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

// decoder holds the state of one decode call. Nothing here is shared:
// concurrent Decode calls on independent readers are safe.
type decoder struct {
	src    *bufio.Reader
	cache  pixelCache
	last   Pixel
	grid   []Pixel
	cursor int
}

// Decode reads one complete QOI stream from r and returns the decoded
// image. It returns ErrTruncated if r runs out before the stream is
// complete, ErrInvalid for malformed content, and ErrTooLarge when the
// header declares more than DefaultMaxPixels pixels.
func Decode(r io.Reader) (*Image, error) {
	return DecodeWithLimit(r, DefaultMaxPixels)
}

// DecodeWithLimit is Decode with a caller-chosen pixel allocation cap.
func DecodeWithLimit(r io.Reader, maxPixels uint64) (*Image, error) {
	src := bufio.NewReader(r)

	var raw [HeaderSize]byte
	if _, err := io.ReadFull(src, raw[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrTruncated, err)
	}

	hdr, err := ParseHeader(raw[:])
	if err != nil {
		return nil, err
	}
	if !hdr.Valid() {
		return nil, fmt.Errorf("%w: bad header (channels=%d colorspace=%d)", ErrInvalid, hdr.Channels, hdr.Colorspace)
	}

	total := uint64(hdr.Width) * uint64(hdr.Height)
	if total > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrTooLarge, hdr.Width, hdr.Height, maxPixels)
	}

	d := decoder{
		src:   src,
		cache: newPixelCache(),
		last:  Pixel{A: 255},
		grid:  make([]Pixel, total),
	}

	if err := d.run(); err != nil {
		return nil, err
	}

	return &Image{
		Width:      hdr.Width,
		Height:     hdr.Height,
		Channels:   hdr.Channels,
		Colorspace: hdr.Colorspace,
		Pixels:     d.grid,
	}, nil
}

// run drives the opcode loop. The stream is finished only when the grid
// is full AND the next 8 bytes are the exact end marker; a full grid
// without the marker is invalid, and running out of bytes before both
// conditions hold is a truncation. The marker peek is deferred until
// the pixel count is satisfied, which preserves the same observable
// termination condition as checking it on every iteration.
func (d *decoder) run() error {
	for {
		if d.cursor == len(d.grid) {
			tail, err := d.src.Peek(len(endMarker))
			if err != nil {
				return fmt.Errorf("%w: reading end marker: %v", ErrTruncated, err)
			}
			if bytes.Equal(tail, endMarker[:]) {
				_, _ = d.src.Discard(len(endMarker))
				return nil
			}
			// Grid full but no marker: whatever follows parses as an
			// opcode and every opcode writes at least one pixel, so the
			// overflow check below reports the stream as invalid.
		}

		op, err := d.readOperation()
		if err != nil {
			return err
		}
		if err := d.apply(op); err != nil {
			return err
		}
	}
}

// apply reconstructs the pixels for one operation and advances the
// write cursor.
func (d *decoder) apply(op operation) error {
	if op.kind == kindRun {
		if d.cursor+op.run > len(d.grid) {
			return fmt.Errorf("%w: run of %d overflows grid at pixel %d of %d", ErrInvalid, op.run, d.cursor, len(d.grid))
		}
		for i := 0; i < op.run; i++ {
			d.grid[d.cursor] = d.last
			d.cursor++
		}
		// A run repeats the existing last pixel; the cache sees one
		// update for the whole run, not one per copy.
		d.cache.put(d.last)
		return nil
	}

	var px Pixel
	switch op.kind {
	case kindRGB:
		px = op.px
		px.A = d.last.A
	case kindRGBA:
		px = op.px
	case kindIndex:
		px = d.cache[op.index]
	case kindDiff, kindLuma:
		px = Pixel{R: d.last.R + op.dr, G: d.last.G + op.dg, B: d.last.B + op.db, A: d.last.A}
	}

	return d.emit(px)
}

// emit stores one pixel at the cursor and updates the last-pixel and
// cache state. Index lookups go through here too, so a cache slot is
// rewritten even when the value is unchanged.
func (d *decoder) emit(px Pixel) error {
	if d.cursor >= len(d.grid) {
		return fmt.Errorf("%w: pixel write past the %d-pixel grid", ErrInvalid, len(d.grid))
	}

	d.grid[d.cursor] = px
	d.cursor++
	d.last = px
	d.cache.put(px)

	return nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.src.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: reading opcode: %v", ErrTruncated, err)
	}
	return b, nil
}

func (d *decoder) readFull(b []byte) error {
	if _, err := io.ReadFull(d.src, b); err != nil {
		return fmt.Errorf("%w: reading operands: %v", ErrTruncated, err)
	}
	return nil
}
