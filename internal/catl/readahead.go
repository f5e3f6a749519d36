package catl

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

const (
	defaultChunkSize = 2 << 20 // 2 MiB
	defaultNumChunks = 4
)

// ReadAheadReader wraps an io.Reader with a background goroutine that
// reads fixed-size chunks into a bounded channel, so decompression (or
// whatever upstream produces bytes) runs concurrently with the consumer.
// Cancellation via Close drains the background goroutine.
type ReadAheadReader struct {
	cancel  context.CancelFunc
	group   *errgroup.Group
	chunks  chan []byte
	current []byte
	pos     int
	closed  bool
}

// NewReadAheadReader starts a background reader over src, buffering up to
// numChunks chunks of chunkSize bytes each. A zero chunkSize/numChunks
// uses the defaults (2 MiB chunks, 4 chunks), matching the source
// filter's defaults.
func NewReadAheadReader(ctx context.Context, src io.Reader, chunkSize, numChunks int) *ReadAheadReader {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if numChunks <= 0 {
		numChunks = defaultNumChunks
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	r := &ReadAheadReader{
		cancel: cancel,
		group:  group,
		chunks: make(chan []byte, numChunks),
	}

	group.Go(func() error {
		defer close(r.chunks)
		for {
			buf := make([]byte, chunkSize)
			n, err := io.ReadFull(src, buf)
			if n > 0 {
				chunk := buf[:n]
				select {
				case r.chunks <- chunk:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	return r
}

// Read implements io.Reader, pulling from already-buffered chunks.
func (r *ReadAheadReader) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if r.current == nil || r.pos >= len(r.current) {
			chunk, ok := <-r.chunks
			if !ok {
				if total > 0 {
					return total, nil
				}
				if err := r.group.Wait(); err != nil {
					return 0, err
				}
				return 0, io.EOF
			}
			r.current = chunk
			r.pos = 0
		}
		n := copy(p[total:], r.current[r.pos:])
		r.pos += n
		total += n
	}
	return total, nil
}

// Close cancels the background reader and waits for it to stop.
func (r *ReadAheadReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()
	for range r.chunks {
		// drain so the producer goroutine's send doesn't block forever
	}
	err := r.group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
