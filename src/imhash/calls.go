package main

// #include <stdlib.h>
// #include <stdint.h>
import "C"
import "unsafe"

// The helpers below drive the exported functions with Go values, the same
// way a C caller would: nil arguments are passed as NULL, and MH buffers are
// copied out and released with free.

func cString(s *string) (*C.char, func()) {
	if s == nil {
		return nil, func() {}
	}
	cs := C.CString(*s)
	return cs, func() { C.free(unsafe.Pointer(cs)) }
}

func cBytes(data []byte) *C.uint8_t {
	if len(data) == 0 {
		return nil
	}
	return (*C.uint8_t)(unsafe.Pointer(&data[0]))
}

func callDCT(path *string, hash *uint64) int {
	cpath, free := cString(path)
	defer free()
	return dctResult(hash, func(h *C.ulonglong) C.int { return ph_dct_imagehash_c(cpath, h) })
}

func callDCTMem(data []byte, size uint64, hash *uint64) int {
	return dctResult(hash, func(h *C.ulonglong) C.int {
		return ph_dct_imagehash_mem_c(cBytes(data), C.size_t(size), h)
	})
}

func callMH(path *string, n *int, alpha, lvl float32) []byte {
	cpath, free := cString(path)
	defer free()
	return mhResult(n, func(cn *C.int) *C.uint8_t {
		return ph_mh_imagehash_c(cpath, cn, C.float(alpha), C.float(lvl))
	})
}

func callMHMem(data []byte, size uint64, n *int, alpha, lvl float32) []byte {
	return mhResult(n, func(cn *C.int) *C.uint8_t {
		return ph_mh_imagehash_mem_c(cBytes(data), C.size_t(size), cn, C.float(alpha), C.float(lvl))
	})
}

func dctResult(hash *uint64, call func(*C.ulonglong) C.int) int {
	if hash == nil {
		return int(call(nil))
	}
	v := C.ulonglong(*hash)
	status := call(&v)
	*hash = uint64(v)
	return int(status)
}

// mhResult returns nil when the export returned NULL. Otherwise it copies
// *N bytes out of the C buffer and frees it.
func mhResult(n *int, call func(*C.int) *C.uint8_t) []byte {
	var cn C.int
	var buf *C.uint8_t
	if n == nil {
		buf = call(nil)
	} else {
		cn = C.int(*n)
		buf = call(&cn)
		*n = int(cn)
	}
	if buf == nil {
		return nil
	}
	defer C.free(unsafe.Pointer(buf))
	return C.GoBytes(unsafe.Pointer(buf), cn)
}
