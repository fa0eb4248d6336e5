// Package imagehash implements the perceptual image hashes exported by the
// phash library: a 64-bit DCT hash and the 72-byte Marr-Hildreth hash.
package imagehash

import (
	"image"

	"github.com/corona10/goimagehash"
	lru "github.com/hashicorp/golang-lru/v2"
)

const kernelCacheSize = 16

// Hasher computes hashes from a Source. It is safe for concurrent use.
type Hasher struct {
	kernels   *lru.Cache[MHParams, *kernel]
	maxPixels int
}

type Option func(*Hasher)

// WithMaxPixels rejects images whose width*height exceeds n as a resource
// failure. n <= 0 removes the limit.
func WithMaxPixels(n int) Option {
	return func(h *Hasher) { h.maxPixels = n }
}

func NewHasher(opts ...Option) *Hasher {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[MHParams, *kernel](kernelCacheSize)
	h := &Hasher{kernels: cache, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hasher) load(src Source) (image.Image, error) {
	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}
	return Decode(data, h.maxPixels)
}

// DCT loads src and returns its DCT perceptual hash.
func (h *Hasher) DCT(src Source) (uint64, error) {
	img, err := h.load(src)
	if err != nil {
		return 0, err
	}
	return DCTImage(img)
}

// MH loads src and returns its Marr-Hildreth hash, MHHashLen bytes long.
func (h *Hasher) MH(src Source, p MHParams) ([]byte, error) {
	k, err := h.kernel(p)
	if err != nil {
		return nil, err
	}
	img, err := h.load(src)
	if err != nil {
		return nil, err
	}
	return mhWithKernel(img, k)
}

func (h *Hasher) kernel(p MHParams) (*kernel, error) {
	if k, ok := h.kernels.Get(p); ok {
		return k, nil
	}
	k, err := newKernel(p)
	if err != nil {
		return nil, err
	}
	h.kernels.Add(p, k)
	return k, nil
}

// DCTImage hashes an already decoded image.
func DCTImage(img image.Image) (uint64, error) {
	if img == nil {
		return 0, newError("dct", CategoryPrecondition, ErrNilImage)
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, newError("dct", CategoryPrecondition, err)
	}
	return hash.GetHash(), nil
}
