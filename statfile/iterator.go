package statfile

import (
	"context"
	"io"

	"github.com/colstat/statread/frame"
	"github.com/colstat/statread/rangereader"
)

// BatchIterator is the pull-based streaming reader of §4.7: repeated
// Next calls walk [offset, offset+limit) in batch_size-row chunks, each
// chunk itself decoded by the §4.6 parallel range reader.
type BatchIterator struct {
	r *Reader

	offset    int64
	remaining int64
	batchSize int
}

// Iterator builds a BatchIterator over [offset, offset+limit). A
// batchSize <= 0 resolves to rangereader.DefaultChunkSize.
func (r *Reader) Iterator(offset, limit int64, batchSize int) *BatchIterator {
	if batchSize <= 0 {
		batchSize = rangereader.DefaultChunkSize
	}

	return &BatchIterator{r: r, offset: offset, remaining: limit, batchSize: batchSize}
}

// Next returns the next batch, or io.EOF once the iterator's range is
// exhausted. Per §4.7, an error return terminates the iterator; callers
// must not call Next again afterward.
func (it *BatchIterator) Next(ctx context.Context) (*frame.Frame, error) {
	if it.remaining <= 0 {
		return nil, io.EOF
	}

	take := int64(it.batchSize)
	if take > it.remaining {
		take = it.remaining
	}

	f, err := it.r.ReadRange(ctx, it.offset, take)
	if err != nil {
		return nil, err
	}

	it.offset += take
	it.remaining -= take

	return f, nil
}
