package main

// #include <stdlib.h>
// #include <stdint.h>
import "C"
import "unsafe"

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"phash/config"
	"phash/internal/boundary"
	"phash/internal/imagehash"
	"phash/internal/logging"
)

const (
	opDCTMem = "ph_dct_imagehash_mem_c"
	opMHMem  = "ph_mh_imagehash_mem_c"
)

var adapter *boundary.Adapter

func init() {
	cfg, log := setup()
	adapter = boundary.New(imagehash.NewHasher(imagehash.WithMaxPixels(cfg.MaxPixels)), log)
}

// setup never fails: a broken configuration falls back to the defaults and
// is reported once on the fallback logger.
func setup() (*config.Config, *zap.Logger) {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		def := config.DefaultConfig()
		log, _ := logging.New("phash", def.Log, os.Stderr)
		if log == nil {
			return def, zap.NewNop()
		}
		log.Error("invalid configuration, using defaults", zap.Error(err))
		return def, log
	}
	log, err := logging.New("phash", cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "phash: %v\n", err)
		return cfg, zap.NewNop()
	}
	return cfg, log
}

// memSource fails when data is NULL or size is zero or does not fit a Go
// slice length.
func memSource(data *C.uint8_t, size C.size_t) (imagehash.Source, error) {
	if data == nil || size == 0 {
		return nil, imagehash.ErrEmptyData
	}
	if uint64(size) > uint64(math.MaxInt) {
		return nil, fmt.Errorf("data size %d exceeds addressable memory", uint64(size))
	}
	return imagehash.BytesSource(unsafe.Slice((*byte)(unsafe.Pointer(data)), int(size))), nil
}

func dct(op string, src imagehash.Source, hash *C.ulonglong) C.int {
	if hash == nil {
		adapter.Report(op, src, boundary.ErrNilOutput)
		return boundary.StatusFailed
	}
	var h uint64
	status := adapter.DCTImageHash(op, src, &h)
	if status == boundary.StatusOK {
		*hash = C.ulonglong(h)
	}
	return C.int(status)
}

// mh copies the hash into C memory so the caller can release it with free.
func mh(op string, src imagehash.Source, n *C.int, alpha, lvl C.float) *C.uint8_t {
	if n == nil {
		adapter.Report(op, src, boundary.ErrNilOutput)
		return nil
	}
	*n = 0
	var count int
	hash := adapter.MHImageHash(op, src, &count, float32(alpha), float32(lvl))
	if hash == nil {
		return nil
	}
	buf := C.malloc(C.size_t(count))
	if buf == nil {
		adapter.Report(op, src, fmt.Errorf("malloc %d bytes failed", count))
		return nil
	}
	copy(unsafe.Slice((*byte)(buf), count), hash)
	*n = C.int(count)
	return (*C.uint8_t)(buf)
}

//export ph_dct_imagehash_c
func ph_dct_imagehash_c(filename *C.char, hash *C.ulonglong) C.int {
	if filename == nil {
		adapter.Report(boundary.OpDCT, nil, imagehash.ErrEmptyPath)
		return boundary.StatusFailed
	}
	return dct(boundary.OpDCT, imagehash.FileSource(C.GoString(filename)), hash)
}

//export ph_mh_imagehash_c
func ph_mh_imagehash_c(filename *C.char, n *C.int, alpha, lvl C.float) *C.uint8_t {
	if filename == nil {
		if n != nil {
			*n = 0
		}
		adapter.Report(boundary.OpMH, nil, imagehash.ErrEmptyPath)
		return nil
	}
	return mh(boundary.OpMH, imagehash.FileSource(C.GoString(filename)), n, alpha, lvl)
}

//export ph_dct_imagehash_mem_c
func ph_dct_imagehash_mem_c(data *C.uint8_t, size C.size_t, hash *C.ulonglong) C.int {
	src, err := memSource(data, size)
	if err != nil {
		adapter.Report(opDCTMem, nil, err)
		return boundary.StatusFailed
	}
	return dct(opDCTMem, src, hash)
}

//export ph_mh_imagehash_mem_c
func ph_mh_imagehash_mem_c(data *C.uint8_t, size C.size_t, n *C.int, alpha, lvl C.float) *C.uint8_t {
	src, err := memSource(data, size)
	if err != nil {
		if n != nil {
			*n = 0
		}
		adapter.Report(opMHMem, nil, err)
		return nil
	}
	return mh(opMHMem, src, n, alpha, lvl)
}

//export ph_log_sync_c
func ph_log_sync_c() {
	_ = adapter.Sync()
}

func main() {}
