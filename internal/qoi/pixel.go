package qoi

// Pixel is one RGBA sample. All channel reconstruction in this format is
// modular 8-bit arithmetic, which Go's uint8 wraparound gives us directly.
type Pixel struct {
	R, G, B, A uint8
}

// cacheSize is the number of slots in the previously-seen-pixel table.
const cacheSize = 64

// pixelCache maps a pixel's hash to the most recently emitted pixel with
// that hash. There is no collision handling: a slot holds whatever pixel
// last landed there, and an index opcode reads it back as-is. The format
// defines the table this way, so the lossiness is required for
// interoperability, not an optimization.
type pixelCache [cacheSize]Pixel

// newPixelCache returns the table in its defined starting state:
// opaque black in every slot.
func newPixelCache() pixelCache {
	var c pixelCache
	for i := range c {
		c[i] = Pixel{A: 255}
	}
	return c
}

// hash computes p's cache slot: (3R + 5G + 7B + 11A) mod 64.
// The multipliers and modulus are fixed by the format; the sum is taken
// in uint32 so it cannot overflow before the reduction.
func (p Pixel) hash() int {
	return int((3*uint32(p.R) + 5*uint32(p.G) + 7*uint32(p.B) + 11*uint32(p.A)) % cacheSize)
}

func (c *pixelCache) put(p Pixel) {
	c[p.hash()] = p
}
