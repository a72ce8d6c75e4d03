package qoi

import "fmt"

// Control byte layout. 0xFE and 0xFF are full-byte literal tags checked
// first; every other value dispatches on its top two bits.
const (
	opRGB   = 0xFE // followed by R, G, B
	opRGBA  = 0xFF // followed by R, G, B, A
	opIndex = 0x00 // low 6 bits: cache slot
	opDiff  = 0x40 // three 2-bit channel deltas, biased by 2
	opLuma  = 0x80 // low 6 bits: green delta biased by 32, + 1 operand byte
	opRun   = 0xC0 // low 6 bits: repeat count minus 1

	opMask2  = 0xC0 // top two bits select the kind
	maskLow6 = 0x3F
)

// opKind discriminates the six operation kinds.
type opKind uint8

const (
	kindRGB opKind = iota
	kindRGBA
	kindIndex
	kindDiff
	kindLuma
	kindRun
)

// operation is one decoded opcode: the kind plus its extracted operands.
// The raw control byte is classified exactly once, when the operation is
// read; nothing downstream looks at raw bytes again.
type operation struct {
	kind opKind

	px         Pixel // kindRGB (alpha unset), kindRGBA
	index      int   // kindIndex, already masked to [0,63]
	dr, dg, db uint8 // kindDiff, kindLuma: unbiased modular deltas
	run        int   // kindRun, in [1,62]
}

// readOperation reads one control byte plus its operand bytes and
// returns the decoded operation. Delta bias subtraction wraps modulo
// 256, matching the format's modular channel arithmetic.
func (d *decoder) readOperation() (operation, error) {
	ctrl, err := d.readByte()
	if err != nil {
		return operation{}, err
	}

	switch ctrl {
	case opRGB:
		var rgb [3]byte
		if err := d.readFull(rgb[:]); err != nil {
			return operation{}, err
		}
		return operation{kind: kindRGB, px: Pixel{R: rgb[0], G: rgb[1], B: rgb[2]}}, nil

	case opRGBA:
		var rgba [4]byte
		if err := d.readFull(rgba[:]); err != nil {
			return operation{}, err
		}
		return operation{kind: kindRGBA, px: Pixel{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}}, nil
	}

	switch ctrl & opMask2 {
	case opIndex:
		return operation{kind: kindIndex, index: int(ctrl & maskLow6)}, nil

	case opDiff:
		return operation{
			kind: kindDiff,
			dr:   (ctrl>>4)&0x03 - 2,
			dg:   (ctrl>>2)&0x03 - 2,
			db:   ctrl&0x03 - 2,
		}, nil

	case opLuma:
		dg := ctrl&maskLow6 - 32
		operand, err := d.readByte()
		if err != nil {
			return operation{}, err
		}
		return operation{
			kind: kindLuma,
			dr:   dg + operand>>4 - 8,
			dg:   dg,
			db:   dg + operand&0x0F - 8,
		}, nil

	case opRun:
		return operation{kind: kindRun, run: int(ctrl&maskLow6) + 1}, nil
	}

	// Unreachable: the two-bit dispatch above is exhaustive.
	return operation{}, fmt.Errorf("%w: unclassifiable opcode 0x%02x", ErrInvalid, ctrl)
}
