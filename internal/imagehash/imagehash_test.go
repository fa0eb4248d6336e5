package imagehash

import (
	"bytes"
	"image"
	"image/color"
	"encoding/binary"
	"hash/crc32"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/corona10/goimagehash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, encodePNG(t, img), 0o600))
	return path
}

func TestDCTMatchesPerceptionHash(t *testing.T) {
	img := gradient(120, 80)
	path := writePNG(t, "gradient.png", img)

	want, err := goimagehash.PerceptionHash(img)
	require.NoError(t, err)

	got, err := NewHasher().DCT(FileSource(path))
	require.NoError(t, err)
	assert.Equal(t, want.GetHash(), got)

	again, err := NewHasher().DCT(BytesSource(encodePNG(t, img)))
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestDCTImageNil(t *testing.T) {
	_, err := DCTImage(nil)
	assert.ErrorIs(t, err, ErrNilImage)
	assert.True(t, IsCategory(err, CategoryPrecondition))
}

func TestSourceErrors(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("just some text, not pixels\n"), 0o600))

	truncated := encodePNG(t, gradient(16, 16))[:40]

	testCases := []struct {
		name   string
		src    Source
		target error
	}{
		{name: "empty path", src: FileSource(""), target: ErrEmptyPath},
		{name: "missing file", src: FileSource(filepath.Join(dir, "missing.png")), target: os.ErrNotExist},
		{name: "not an image", src: FileSource(textPath), target: ErrNotImage},
		{name: "empty bytes", src: BytesSource(nil), target: ErrEmptyData},
		{name: "truncated png", src: BytesSource(truncated)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewHasher().DCT(tc.src)
			require.Error(t, err)
			assert.True(t, IsCategory(err, CategoryResource), "category %v", CategoryOf(err))
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}

			_, err = NewHasher().MH(tc.src, DefaultMHParams())
			require.Error(t, err)
			assert.True(t, IsCategory(err, CategoryResource))
		})
	}
}

func TestMHLengthAndDeterminism(t *testing.T) {
	img := gradient(64, 48)
	path := writePNG(t, "gradient.png", img)
	h := NewHasher()

	first, err := h.MH(FileSource(path), DefaultMHParams())
	require.NoError(t, err)
	assert.Len(t, first, MHHashLen)

	second, err := h.MH(BytesSource(encodePNG(t, img)), DefaultMHParams())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	direct, err := MHImage(img, DefaultMHParams())
	require.NoError(t, err)
	assert.Equal(t, first, direct)
}

// oversizedPNG returns a valid 1x1 PNG whose header claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	data := oversizedPNG(t, 100000, 100000)
	h := NewHasher()

	_, err := h.MH(BytesSource(data), DefaultMHParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.True(t, IsCategory(err, CategoryResource))

	_, err = h.DCT(BytesSource(data))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestMaxPixelsOption(t *testing.T) {
	data := encodePNG(t, gradient(300, 300))

	_, err := NewHasher(WithMaxPixels(300*300 - 1)).MH(BytesSource(data), DefaultMHParams())
	assert.ErrorIs(t, err, ErrImageTooLarge)

	hash, err := NewHasher(WithMaxPixels(300 * 300)).MH(BytesSource(data), DefaultMHParams())
	require.NoError(t, err)
	assert.Len(t, hash, MHHashLen)

	_, err = NewHasher(WithMaxPixels(0)).DCT(BytesSource(data))
	assert.NoError(t, err)
}

func TestMHGrayImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	hash, err := MHImage(img, DefaultMHParams())
	require.NoError(t, err)
	assert.Len(t, hash, MHHashLen)
}

func TestMHParamsRejected(t *testing.T) {
	testCases := []struct {
		name   string
		params MHParams
		target error
	}{
		{name: "zero alpha", params: MHParams{Alpha: 0, Level: 1}, target: ErrBadParams},
		{name: "negative alpha", params: MHParams{Alpha: -2, Level: 1}, target: ErrBadParams},
		{name: "nan level", params: MHParams{Alpha: 2, Level: math.NaN()}, target: ErrBadParams},
		{name: "infinite alpha", params: MHParams{Alpha: math.Inf(1), Level: 1}, target: ErrBadParams},
		{name: "radius below one", params: MHParams{Alpha: 2, Level: -3}, target: ErrBadParams},
		{name: "kernel too large", params: MHParams{Alpha: 2, Level: 10}, target: ErrKernelTooLarge},
	}

	img := gradient(32, 32)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MHImage(img, tc.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.True(t, IsCategory(err, CategoryPrecondition))
		})
	}
}

func TestMHPreconditionBeforeLoad(t *testing.T) {
	// Bad parameters are reported even when the source is also bad.
	_, err := NewHasher().MH(FileSource(""), MHParams{Alpha: 0, Level: 1})
	assert.True(t, IsCategory(err, CategoryPrecondition))
}

func TestKernel(t *testing.T) {
	k, err := newKernel(DefaultMHParams())
	require.NoError(t, err)
	assert.Equal(t, 8, k.radius)
	assert.Equal(t, 17, k.side)
	assert.InDelta(t, 2.0, k.w[k.radius*k.side+k.radius], 1e-12)

	for y := 0; y < k.side; y++ {
		for x := 0; x < k.side; x++ {
			assert.InDelta(t, k.w[y*k.side+x], k.w[x*k.side+y], 1e-12)
			assert.InDelta(t, k.w[y*k.side+x], k.w[(k.side-1-y)*k.side+(k.side-1-x)], 1e-12)
		}
	}
}

func TestKernelCacheKeyedByParams(t *testing.T) {
	h := NewHasher()
	a, err := h.kernel(DefaultMHParams())
	require.NoError(t, err)
	b, err := h.kernel(MHParams{Alpha: 2, Level: 2})
	require.NoError(t, err)
	again, err := h.kernel(DefaultMHParams())
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotEqual(t, a.radius, b.radius)
	assert.Equal(t, 2, h.kernels.Len())
}

func TestPackBits(t *testing.T) {
	var flat [mhBlocks][mhBlocks]float64
	hash := packBits(flat)
	assert.Equal(t, make([]byte, MHHashLen), hash)

	var ramp [mhBlocks][mhBlocks]float64
	for y := range ramp {
		for x := range ramp[y] {
			ramp[y][x] = float64(y*mhBlocks + x)
		}
	}
	// Every window is 000001111: the centre is the mean and four cells exceed it.
	hash = packBits(ramp)
	require.Len(t, hash, MHHashLen)
	assert.Equal(t, []byte{0x07, 0x83, 0xc1}, hash[:3])
}

func TestEqualizeAndNormalizeFlat(t *testing.T) {
	p := newPlane(4, 4)
	for i := range p.pix {
		p.pix[i] = 9
	}
	assert.Same(t, p, equalize(p, 256))

	normalize(p)
	for _, v := range p.pix {
		assert.Zero(t, v)
	}
}

func TestEqualizeSpreadsRange(t *testing.T) {
	p := newPlane(2, 2)
	copy(p.pix, []float64{10, 10, 10, 200})
	out := equalize(p, 256)
	lo, hi := out.minMax()
	assert.Equal(t, 200.0, hi)
	assert.GreaterOrEqual(t, lo, 10.0)
	assert.Equal(t, out.pix[0], out.pix[1])
}

func TestErrorFormatting(t *testing.T) {
	err := newError("load", CategoryResource, ErrEmptyPath)
	assert.Equal(t, "[resource] load: empty image path", err.Error())
	assert.Same(t, err, AsError(err))
	assert.Nil(t, AsError(os.ErrClosed))
	assert.Equal(t, CategoryInternal, CategoryOf(os.ErrClosed))
	assert.False(t, IsCategory(nil, CategoryInternal))
	assert.Equal(t, "unknown", Category(0).String())
}
