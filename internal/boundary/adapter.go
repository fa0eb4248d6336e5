// Package boundary turns fallible hash computations into the sentinel-only
// calling convention required by C callers. Nothing that goes wrong inside a
// hash computation, error or panic, escapes an Adapter method; the caller sees
// a status code or a nil buffer and the detail goes to the diagnostic logger.
package boundary

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"phash/internal/imagehash"
)

const (
	StatusOK     = 0
	StatusFailed = -1

	OpDCT = "ph_dct_imagehash_c"
	OpMH  = "ph_mh_imagehash_c"
)

var ErrNilOutput = errors.New("nil output pointer")

// Hasher is the set of internal hash computations the adapter guards.
type Hasher interface {
	DCT(src imagehash.Source) (uint64, error)
	MH(src imagehash.Source, p imagehash.MHParams) ([]byte, error)
}

// Adapter guards a Hasher. It holds no per-call state and is safe for
// concurrent use as long as the Hasher is.
type Adapter struct {
	hasher Hasher
	log    *zap.Logger
}

// New returns an Adapter over h that reports failures to log. A nil log
// discards diagnostics.
func New(h Hasher, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{hasher: h, log: log}
}

// DCTImageHash writes the DCT hash of src into out and returns StatusOK, or
// returns StatusFailed and leaves out untouched.
func (a *Adapter) DCTImageHash(op string, src imagehash.Source, out *uint64) int {
	if out == nil {
		a.report(op, src, imagehash.CategoryPrecondition, ErrNilOutput)
		return StatusFailed
	}
	hash, err := capture(func() (uint64, error) { return a.hasher.DCT(src) })
	if err != nil {
		a.fail(op, src, err)
		return StatusFailed
	}
	*out = hash
	return StatusOK
}

// MHImageHash returns the Marr-Hildreth hash of src and stores its length in
// n. On failure it returns nil and sets n to zero. The returned slice belongs
// to the caller.
func (a *Adapter) MHImageHash(op string, src imagehash.Source, n *int, alpha, lvl float32) []byte {
	if n == nil {
		a.report(op, src, imagehash.CategoryPrecondition, ErrNilOutput)
		return nil
	}
	*n = 0
	p := imagehash.MHParams{Alpha: float64(alpha), Level: float64(lvl)}
	hash, err := capture(func() ([]byte, error) { return a.hasher.MH(src, p) })
	if err == nil && hash == nil {
		err = errors.New("hasher returned no data")
	}
	if err != nil {
		a.fail(op, src, err)
		return nil
	}
	*n = len(hash)
	return hash
}

// Report logs a failure detected outside a guarded call, such as a nil
// pointer handed over by the C caller.
func (a *Adapter) Report(op string, src imagehash.Source, err error) {
	a.report(op, src, imagehash.CategoryPrecondition, err)
}

// Sync flushes the diagnostic logger.
func (a *Adapter) Sync() error { return a.log.Sync() }

func (a *Adapter) fail(op string, src imagehash.Source, err error) {
	a.report(op, src, imagehash.CategoryOf(err), err)
}

func (a *Adapter) report(op string, src imagehash.Source, c imagehash.Category, err error) {
	a.log.Error(fmt.Sprintf("%s: caught exception", op),
		zap.String("op", op),
		zap.String("source", describe(src)),
		zap.Stringer("category", c),
		zap.Error(err),
	)
}

func describe(src imagehash.Source) (s string) {
	if src == nil {
		return "<nil>"
	}
	defer func() {
		if recover() != nil {
			s = "<unprintable>"
		}
	}()
	return src.String()
}
