// Package rangereader implements the parallel range reader (§4.6): it
// partitions a row range into fixed-size windows, decodes them under a
// bounded worker pool, and stitches the results back into a single
// frame in window order. The package is format-agnostic — callers
// (statfile's per-format adapters) supply a DecodeFunc that knows how
// to open a file handle and decode one window's rows.
package rangereader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/colstat/statread/frame"
)

const (
	// DefaultChunkSize is the window size used when the caller leaves
	// ScanOptions.ChunkSize unset (§4.6 step 1).
	DefaultChunkSize = 100_000

	// MinChunkSize is the floor below which a caller-supplied chunk
	// size is clamped, so per-window overhead cannot dominate decode
	// time (§4.6 step 1: "floor 1 000").
	MinChunkSize = 1_000
)

// Window is one contiguous row range assigned to a single worker.
type Window struct {
	Index    int   // position in file order; used to reassemble results
	StartRow int64 // row offset within the scanned range, absolute
	NumRows  int
}

// DecodeFunc decodes exactly w.NumRows rows starting at w.StartRow into
// a frame. Implementations open their own file handle and run the
// format's §4.5 row decoder to skip to the window's start row (§4.6
// step 3); this package never touches file I/O itself.
type DecodeFunc func(ctx context.Context, w Window) (*frame.Frame, error)

// Partition splits [offset, offset+limit) into consecutive windows of
// at most chunkSize rows each (§4.6 steps 1-2). chunkSize <= 0 resolves
// to DefaultChunkSize; a value under MinChunkSize is clamped up to it.
func Partition(offset, limit int64, chunkSize int) []Window {
	if limit <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}

	windowCount := int((limit + int64(chunkSize) - 1) / int64(chunkSize))
	windows := make([]Window, 0, windowCount)

	row := offset
	remaining := limit
	for i := 0; remaining > 0; i++ {
		n := int64(chunkSize)
		if n > remaining {
			n = remaining
		}

		windows = append(windows, Window{Index: i, StartRow: row, NumRows: int(n)})
		row += n
		remaining -= n
	}

	return windows
}

// Run decodes every window under a worker pool bounded to threads
// concurrent decodes (assigning windows to free workers realizes the
// round-robin scheduling §4.6 step 2 describes), then stitches the
// per-window frames back together in ascending window-index order via
// Frame.Concat (§4.6 step 4). threads < 1 is treated as 1.
//
// The first window failure cancels the shared context and aborts the
// remaining in-flight decodes; their partial results are discarded
// (§5: "hard fail ... propagates out of the iterator").
func Run(ctx context.Context, windows []Window, threads int, decode DecodeFunc) (*frame.Frame, error) {
	if len(windows) == 0 {
		return nil, nil
	}
	if threads < 1 {
		threads = 1
	}

	results := make([]*frame.Frame, len(windows))
	sem := semaphore.NewWeighted(int64(threads))
	group, gctx := errgroup.WithContext(ctx)

	for _, w := range windows {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		w := w
		group.Go(func() error {
			defer sem.Release(1)

			f, err := decode(gctx, w)
			if err != nil {
				return fmt.Errorf("rangereader: window %d [%d,%d): %w", w.Index, w.StartRow, w.StartRow+int64(w.NumRows), err)
			}
			results[w.Index] = f

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := results[0]
	for _, f := range results[1:] {
		if f == nil {
			continue
		}
		if err := out.Concat(f); err != nil {
			return nil, fmt.Errorf("rangereader: stitch: %w", err)
		}
	}

	return out, nil
}

// DefaultThreads resolves the effective worker count from a caller
// argument and the host's physical core count, per §5's "min(physical_cores,
// user_arg, 4)" formula shared by SAS and Stata (and SPSS before its own
// compression downgrade). userArg <= 0 means "unset".
func DefaultThreads(userArg, physicalCores int) int {
	t := physicalCores
	if t < 1 {
		t = 1
	}
	if userArg > 0 && userArg < t {
		t = userArg
	}
	if t > 4 {
		t = 4
	}

	return t
}

// UseSequentialSPSS reports whether a parallel SPSS range read must
// downgrade to single-threaded linear decoding (§4.6 step 5). SPSS
// byte-run/ZSAV decompression is inherently sequential — each block's
// decode consumes state left by the previous one — so any compressed
// file forces sequential decoding regardless of requested thread count;
// only an uncompressed SPSS file can be windowed in parallel like SAS
// and Stata.
func UseSequentialSPSS(compressed bool) bool {
	return compressed
}

// RowsPerPage computes an uncompressed SAS file's fixed row density
// from its page geometry, without walking any page (§4.6 "Analytical
// SAS page index").
func RowsPerPage(pageLength, pageBitOffset, rowLength int) int {
	if rowLength <= 0 {
		return 0
	}

	return (pageLength - (pageBitOffset + 8)) / rowLength
}

// ValidateRowsPerPage confirms a RowsPerPage computation against the
// first Data page's declared block_count field; equality licenses the
// seek-only fast path described below. A mismatch means the caller must
// degrade to sequential skip-rows within each window (§4.6 step 2).
func ValidateRowsPerPage(computed, blockCount int) bool {
	return computed == blockCount
}

// AnalyticalPageIndex locates targetRow (0-based, counted from the start
// of the Data-page region, i.e. excluding metadata-subheader rows and the
// rows carried on the first Mix page) within an uncompressed SAS file's page layout,
// returning the zero-based page index and the byte offset of that row
// within the page. Callers must have already confirmed rowsPerPage with
// ValidateRowsPerPage.
func AnalyticalPageIndex(pageBitOffset, rowLength, rowsPerPage, firstDataPage int, targetRow int64) (pageIndex, withinPageOffset int) {
	rowsIntoData := targetRow
	pageIndex = firstDataPage + int(rowsIntoData/int64(rowsPerPage))
	rowInPage := int(rowsIntoData % int64(rowsPerPage))
	withinPageOffset = pageBitOffset + 8 + rowInPage*rowLength

	return pageIndex, withinPageOffset
}
