package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"phash/internal/boundary"
	"phash/internal/imagehash"
)

type mode int

const (
	modeDCT mode = iota
	modeMH
)

type result struct {
	path string
	hash string
	ok   bool
}

// hashFiles hashes every path through the adapter, at most limit at a time.
// Results come back in input order.
func hashFiles(ctx context.Context, a *boundary.Adapter, m mode, paths []string, p imagehash.MHParams, limit int) []result {
	results := make([]result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = hashOne(a, m, path, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func hashOne(a *boundary.Adapter, m mode, path string, p imagehash.MHParams) result {
	src := imagehash.FileSource(path)
	switch m {
	case modeMH:
		var n int
		buf := a.MHImageHash(boundary.OpMH, src, &n, float32(p.Alpha), float32(p.Level))
		if buf == nil {
			return result{path: path}
		}
		return result{path: path, hash: hex.EncodeToString(buf[:n]), ok: true}
	default:
		var h uint64
		if a.DCTImageHash(boundary.OpDCT, src, &h) != boundary.StatusOK {
			return result{path: path}
		}
		return result{path: path, hash: fmt.Sprintf("%016x", h), ok: true}
	}
}

// writeResults prints successful hashes and returns how many paths failed.
func writeResults(w io.Writer, results []result) (failed int, err error) {
	for _, r := range results {
		if !r.ok {
			failed++
			continue
		}
		if _, err := io.WriteString(w, r.path+"\t"+r.hash+"\n"); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
