package imagehash

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

const (
	// MHHashLen is the length in bytes of a Marr-Hildreth hash.
	MHHashLen = 72

	mhPlaneSize = 512
	mhBlockSize = 16
	mhBlocks    = 31
	mhWindow    = 3
	mhStride    = 4
	blurSigma   = 1.0
)

// plane is a single-channel float image, row-major.
type plane struct {
	w, h int
	pix  []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

func (p *plane) at(x, y int) float64 {
	x = clamp(x, 0, p.w-1)
	y = clamp(y, 0, p.h-1)
	return p.pix[y*p.w+x]
}

func (p *plane) minMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range p.pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// MHImage hashes an already decoded image with the given parameters.
func MHImage(img image.Image, p MHParams) ([]byte, error) {
	k, err := newKernel(p)
	if err != nil {
		return nil, err
	}
	return mhWithKernel(img, k)
}

func mhWithKernel(img image.Image, k *kernel) ([]byte, error) {
	if img == nil {
		return nil, newError("mh", CategoryPrecondition, ErrNilImage)
	}
	if img.Bounds().Empty() {
		return nil, newError("mh", CategoryPrecondition, ErrDegenerateImage)
	}

	y := luma(img)
	y = gaussianBlur(y, blurSigma)
	g := resize.Resize(mhPlaneSize, mhPlaneSize, toGray(y), resize.Bicubic)
	eq := equalize(fromGray(g), 256)

	resp := correlate(eq, k)
	normalize(resp)

	return packBits(blockSums(resp)), nil
}

// luma extracts the 8-bit luminance channel. Gray images are used as is;
// everything else goes through the BT.601 studio-swing Y transform. Alpha is
// ignored, so RGBA input hashes like its RGB content; pHash builds take the
// red channel of 4-channel images instead and will disagree on those.
func luma(img image.Image) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	gray := img.ColorModel() == color.GrayModel || img.ColorModel() == color.Gray16Model
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := p.pix[(y-b.Min.Y)*p.w:]
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			r8, g8, b8 := r>>8, g>>8, bl>>8
			if gray {
				row[x-b.Min.X] = float64(r8)
				continue
			}
			row[x-b.Min.X] = float64(((66*r8+129*g8+25*b8+128)>>8)+16)
		}
	}
	return p
}

func gaussianBlur(src *plane, sigma float64) *plane {
	r := int(math.Ceil(3 * sigma))
	weights := make([]float64, 2*r+1)
	var sum float64
	for i := range weights {
		d := float64(i - r)
		weights[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	tmp := newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			var acc float64
			for i, w := range weights {
				acc += w * src.at(x+i-r, y)
			}
			tmp.pix[y*src.w+x] = acc
		}
	}
	dst := newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			var acc float64
			for i, w := range weights {
				acc += w * tmp.at(x, y+i-r)
			}
			dst.pix[y*src.w+x] = acc
		}
	}
	return dst
}

func toGray(p *plane) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.w, p.h))
	for i, v := range p.pix {
		g.Pix[i] = uint8(clamp(int(math.Round(v)), 0, 255))
	}
	return g
}

func fromGray(img image.Image) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p.pix[(y-b.Min.Y)*p.w+(x-b.Min.X)] = float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return p
}

// equalize flattens the histogram of p over levels bins spanning its own
// value range. A flat plane is returned unchanged.
func equalize(p *plane, levels int) *plane {
	lo, hi := p.minMax()
	if hi <= lo {
		return p
	}
	bin := func(v float64) int {
		return clamp(int((v-lo)*float64(levels-1)/(hi-lo)), 0, levels-1)
	}
	hist := make([]float64, levels)
	for _, v := range p.pix {
		hist[bin(v)]++
	}
	for i := 1; i < levels; i++ {
		hist[i] += hist[i-1]
	}
	total := float64(len(p.pix))
	out := newPlane(p.w, p.h)
	for i, v := range p.pix {
		out.pix[i] = math.Floor(lo + (hi-lo)*hist[bin(v)]/total)
	}
	return out
}

func correlate(src *plane, k *kernel) *plane {
	dst := newPlane(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			var acc float64
			for j := 0; j < k.side; j++ {
				row := k.w[j*k.side:]
				for i := 0; i < k.side; i++ {
					acc += row[i] * src.at(x+i-k.radius, y+j-k.radius)
				}
			}
			dst.pix[y*src.w+x] = acc
		}
	}
	return dst
}

// normalize maps p onto [0, 1] in place. A flat plane becomes all zeros.
func normalize(p *plane) {
	lo, hi := p.minMax()
	span := hi - lo
	for i, v := range p.pix {
		if span == 0 {
			p.pix[i] = 0
			continue
		}
		p.pix[i] = (v - lo) / span
	}
}

// blockSums returns the 16x16 block sums on a 31x31 grid, indexed [y][x].
func blockSums(p *plane) [mhBlocks][mhBlocks]float64 {
	var blocks [mhBlocks][mhBlocks]float64
	for by := 0; by < mhBlocks; by++ {
		for bx := 0; bx < mhBlocks; bx++ {
			var sum float64
			for y := by * mhBlockSize; y < (by+1)*mhBlockSize; y++ {
				for x := bx * mhBlockSize; x < (bx+1)*mhBlockSize; x++ {
					sum += p.pix[y*p.w+x]
				}
			}
			blocks[by][bx] = sum
		}
	}
	return blocks
}

// packBits thresholds each 3x3 window of blocks against its mean, stepping
// the window by 4, and packs the resulting 576 bits MSB first.
func packBits(blocks [mhBlocks][mhBlocks]float64) []byte {
	hash := make([]byte, 0, MHHashLen)
	var cur byte
	var n int
	for wy := 0; wy < mhBlocks-2; wy += mhStride {
		for wx := 0; wx < mhBlocks-2; wx += mhStride {
			var mean float64
			for y := wy; y < wy+mhWindow; y++ {
				for x := wx; x < wx+mhWindow; x++ {
					mean += blocks[y][x]
				}
			}
			mean /= mhWindow * mhWindow
			for y := wy; y < wy+mhWindow; y++ {
				for x := wx; x < wx+mhWindow; x++ {
					cur <<= 1
					if blocks[y][x] > mean {
						cur |= 1
					}
					n++
					if n%8 == 0 {
						hash = append(hash, cur)
						cur = 0
					}
				}
			}
		}
	}
	return hash
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
