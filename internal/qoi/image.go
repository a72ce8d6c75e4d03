package qoi

import "image"

// Image is one fully decoded picture. Pixels always holds exactly
// Width*Height entries; a partially decoded grid is never returned.
type Image struct {
	Width      uint32
	Height     uint32
	Channels   uint8
	Colorspace uint8
	Pixels     []Pixel
}

// RawRGBA returns the pixel grid as a flat R,G,B,A byte sequence,
// the layout a browser canvas consumes directly.
func (m *Image) RawRGBA() []byte {
	out := make([]byte, len(m.Pixels)*4)
	for i, p := range m.Pixels {
		out[i*4+0] = p.R
		out[i*4+1] = p.G
		out[i*4+2] = p.B
		out[i*4+3] = p.A
	}
	return out
}

// NRGBA copies the grid into a stdlib image for re-encoding.
func (m *Image) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, int(m.Width), int(m.Height)))
	copy(img.Pix, m.RawRGBA())
	return img
}
